package vlan

import (
	"errors"
	"testing"

	"github.com/vjardin/grout/pkg/ddf/simnic"
	"github.com/vjardin/grout/pkg/grerr"
	"github.com/vjardin/grout/pkg/iface"
	"github.com/vjardin/grout/pkg/port"
	"github.com/vjardin/grout/pkg/worker"
)

func newHarness(t *testing.T) (*iface.Registry, *Subsystem, uint16) {
	t.Helper()
	d := simnic.New()
	d.AddDevice("sim:0", 0)

	nextCPU := 200
	newCPU := func(numaNode int) (int, error) {
		id := nextCPU
		nextCPU++
		return id, nil
	}
	workers := worker.NewRegistry(newCPU)
	ifaces := iface.NewRegistry()
	cpuTopo := func(cpuID int) (int, bool) { return 0, true }

	portSub := port.New(d, workers, ifaces, cpuTopo)
	ifaces.RegisterType(portSub.Type())

	vlanSub := New(d, ifaces)
	ifaces.RegisterType(vlanSub.Type())

	parent, err := ifaces.Create(iface.TypePort, iface.CommonAttrs{MTU: 1500}, &port.APIInfo{Devargs: "sim:0"})
	if err != nil {
		t.Fatalf("create parent port: %v", err)
	}
	return ifaces, vlanSub, parent.ID
}

func mcastMAC(b byte) []byte {
	return []byte{0x01, 0x00, 0x5e, 0x00, 0x00, b}
}

func TestCreateVLANRegistersLookupAndSubinterface(t *testing.T) {
	ifaces, vlanSub, parentID := newHarness(t)

	ifc, err := ifaces.Create(iface.TypeVLAN, iface.CommonAttrs{MTU: 1500},
		&APIInfo{ParentID: parentID, VLANID: 100, MAC: mcastMAC(1)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok := vlanSub.Lookup(parentID, 100)
	if !ok || got != ifc {
		t.Fatal("expected vlan lookup to find the created sub-interface")
	}

	parent, _ := ifaces.FromID(parentID)
	if _, ok := parent.Subinterfaces[ifc.ID]; !ok {
		t.Fatal("expected vlan to be linked as a subinterface of its parent")
	}
}

func TestDuplicateParentVLANFails(t *testing.T) {
	ifaces, _, parentID := newHarness(t)

	if _, err := ifaces.Create(iface.TypeVLAN, iface.CommonAttrs{}, &APIInfo{ParentID: parentID, VLANID: 100, MAC: mcastMAC(1)}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := ifaces.Create(iface.TypeVLAN, iface.CommonAttrs{}, &APIInfo{ParentID: parentID, VLANID: 100, MAC: mcastMAC(2)})
	if !errors.Is(err, grerr.EADDRINUSE) {
		t.Fatalf("expected EADDRINUSE, got %v", err)
	}
}

func TestNonMulticastMACRejected(t *testing.T) {
	ifaces, _, parentID := newHarness(t)

	_, err := ifaces.Create(iface.TypeVLAN, iface.CommonAttrs{}, &APIInfo{
		ParentID: parentID, VLANID: 100, MAC: []byte{0x02, 0, 0, 0, 0, 1},
	})
	if !errors.Is(err, grerr.EINVAL) {
		t.Fatalf("expected EINVAL for non-multicast mac, got %v", err)
	}
}

func TestDestroyVLANUnlinksAndRemovesLookup(t *testing.T) {
	ifaces, vlanSub, parentID := newHarness(t)

	ifc, err := ifaces.Create(iface.TypeVLAN, iface.CommonAttrs{}, &APIInfo{ParentID: parentID, VLANID: 100, MAC: mcastMAC(1)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := ifaces.Destroy(ifc.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, ok := vlanSub.Lookup(parentID, 100); ok {
		t.Fatal("expected vlan lookup to fail after destroy")
	}
	parent, _ := ifaces.FromID(parentID)
	if _, ok := parent.Subinterfaces[ifc.ID]; ok {
		t.Fatal("expected subinterface link to be removed")
	}
}

func TestReconfigMovesVLANID(t *testing.T) {
	ifaces, vlanSub, parentID := newHarness(t)

	ifc, err := ifaces.Create(iface.TypeVLAN, iface.CommonAttrs{}, &APIInfo{ParentID: parentID, VLANID: 100, MAC: mcastMAC(1)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	common := iface.CommonAttrs{Flags: ifc.Flags, MTU: ifc.MTU, VRFID: ifc.VRFID}
	err = ifaces.Reconfig(ifc.ID, iface.SetVLAN, common, &APIInfo{ParentID: parentID, VLANID: 200, MAC: mcastMAC(1)})
	if err != nil {
		t.Fatalf("Reconfig: %v", err)
	}

	if _, ok := vlanSub.Lookup(parentID, 100); ok {
		t.Fatal("expected old key to be gone after reconfig")
	}
	got, ok := vlanSub.Lookup(parentID, 200)
	if !ok || got != ifc {
		t.Fatal("expected new key to resolve to the reconfigured interface")
	}
}
