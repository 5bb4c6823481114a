package simnic

import (
	"net"
	"testing"

	"github.com/vjardin/grout/pkg/ddf"
)

func ddfConf() ddf.EthConf {
	return ddf.EthConf{RSSHashFuncs: ddf.RSSHashIP, RxOffloads: ddf.RxOffloadChecksum, MQMode: ddf.MQModeRSS}
}

func parseMAC(s string) (net.HardwareAddr, error) {
	return net.ParseMAC(s)
}

func TestProbeRequiresRegisteredDevice(t *testing.T) {
	f := New()
	if _, err := f.Probe("dummy0"); err == nil {
		t.Fatal("expected error probing an unregistered device")
	}
	f.AddDevice("dummy0", 0)
	ids, err := f.Probe("dummy0")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected exactly one matching port id, got %v", ids)
	}
}

func TestConfigureAndQueueLifecycle(t *testing.T) {
	f := New()
	f.AddDevice("dummy0", 0)
	ids, _ := f.Probe("dummy0")
	portID := ids[0]

	if err := f.Configure(portID, 2, 1, ddfConf()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := f.SetupRxQueue(portID, 0, 1024, 0, nil); err != nil {
		t.Fatalf("SetupRxQueue: %v", err)
	}
	if err := f.Start(portID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	link, err := f.Link(portID)
	if err != nil || !link.Up {
		t.Fatalf("Link() = %v, %v; want up=true", link, err)
	}
	if err := f.Stop(portID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	link, _ = f.Link(portID)
	if link.Up {
		t.Fatal("expected link down after Stop")
	}
}

func TestVLANFilterAndMACFilterAreIndependent(t *testing.T) {
	f := New()
	f.AddDevice("dummy0", 0)
	ids, _ := f.Probe("dummy0")
	portID := ids[0]

	mac, _ := parseMAC("01:00:5e:00:00:01")
	if err := f.SetVLANFilter(portID, 100, true); err != nil {
		t.Fatalf("SetVLANFilter: %v", err)
	}
	if err := f.AddEthAddr(portID, mac); err != nil {
		t.Fatalf("AddEthAddr: %v", err)
	}
	if err := f.SetVLANFilter(portID, 100, false); err != nil {
		t.Fatalf("disable SetVLANFilter: %v", err)
	}
	if err := f.DelEthAddr(portID, mac); err != nil {
		t.Fatalf("DelEthAddr: %v", err)
	}
}

func TestRemoveMakesPortUnaddressable(t *testing.T) {
	f := New()
	f.AddDevice("dummy0", 0)
	ids, _ := f.Probe("dummy0")
	portID := ids[0]

	if err := f.Remove(portID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := f.MTU(portID); err == nil {
		t.Fatal("expected error addressing a removed port")
	}
}
