package netlinkdev

import (
	"testing"

	"github.com/vishvananda/netlink"
)

// requireTestLink creates a throwaway dummy link for the duration of the
// test, skipping when the environment lacks CAP_NET_ADMIN (e.g. most CI
// sandboxes and non-Linux hosts).
func requireTestLink(t *testing.T, name string) {
	t.Helper()
	link := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name}}
	if err := netlink.LinkAdd(link); err != nil {
		t.Skipf("netlink unavailable in this environment: %v", err)
	}
	t.Cleanup(func() {
		_ = netlink.LinkDel(link)
	})
}

func TestProbeAndMTU(t *testing.T) {
	const name = "grouttest0"
	requireTestLink(t, name)

	f := New()
	ids, err := f.Probe(name)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	portID := ids[0]

	if err := f.SetMTU(portID, 1400); err != nil {
		t.Fatalf("SetMTU: %v", err)
	}
	mtu, err := f.MTU(portID)
	if err != nil {
		t.Fatalf("MTU: %v", err)
	}
	if mtu != 1400 {
		t.Fatalf("MTU() = %d, want 1400", mtu)
	}
}

func TestQueueSetupIsNotSupported(t *testing.T) {
	const name = "grouttest1"
	requireTestLink(t, name)

	f := New()
	ids, err := f.Probe(name)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if err := f.SetupRxQueue(ids[0], 0, 1024, -1, nil); err == nil {
		t.Fatal("expected SetupRxQueue to be unsupported on a software link")
	}
	if err := f.SetVLANFilter(ids[0], 100, true); err == nil {
		t.Fatal("expected SetVLANFilter to be unsupported on a software link")
	}
}
