package nexthop

import (
	"errors"
	"net"
	"testing"

	"github.com/vjardin/grout/pkg/grerr"
)

func fixedClock(ticks int64) func() int64 {
	return func() int64 { return ticks }
}

func ip(a, b, c, d byte) uint32 {
	return IPv4ToUint32(net.IPv4(a, b, c, d))
}

func mac(b byte) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0, 0, 0, 0, b}
}

func allIfacesExist(uint16) bool { return true }

func TestAddAndLookup(t *testing.T) {
	tbl := NewTable(8, fixedClock(0), 1, nil, allIfacesExist)

	if err := tbl.Add(ip(192, 168, 0, 1), 1, mac(1), false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	idx, nh, ok := tbl.Lookup(ip(192, 168, 0, 1))
	if !ok {
		t.Fatal("expected lookup to find the added next hop")
	}
	if nh.IfaceID != 1 || nh.Flags != FlagStatic|FlagReachable {
		t.Fatalf("unexpected next hop: %+v", nh)
	}
	if tbl.Get(idx) != nh {
		t.Fatal("expected Get(idx) to return the same record")
	}
}

func TestAddDuplicateFailsUnlessExistOkAndIdentical(t *testing.T) {
	tbl := NewTable(8, fixedClock(0), 1, nil, allIfacesExist)
	host := ip(10, 0, 0, 1)

	if err := tbl.Add(host, 1, mac(1), false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := tbl.Add(host, 1, mac(1), true); err != nil {
		t.Fatalf("expected exist_ok identical add to succeed, got %v", err)
	}

	if err := tbl.Add(host, 2, mac(1), true); !errors.Is(err, grerr.EEXIST) {
		t.Fatalf("expected EEXIST for a different iface, got %v", err)
	}

	if err := tbl.Add(host, 1, mac(1), false); !errors.Is(err, grerr.EEXIST) {
		t.Fatalf("expected EEXIST without exist_ok, got %v", err)
	}
}

func TestAddRejectsUnknownIface(t *testing.T) {
	tbl := NewTable(8, fixedClock(0), 1, nil, func(uint16) bool { return false })
	err := tbl.Add(ip(10, 0, 0, 1), 1, mac(1), false)
	if !errors.Is(err, grerr.ENODEV) {
		t.Fatalf("expected ENODEV, got %v", err)
	}
}

func TestDelBusyWhenReferenced(t *testing.T) {
	tbl := NewTable(8, fixedClock(0), 1, nil, allIfacesExist)
	host := ip(10, 0, 0, 1)
	if err := tbl.Add(host, 1, mac(1), false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, nh, _ := tbl.Lookup(host)
	tbl.Incref(nh)

	if err := tbl.Del(host, false); !errors.Is(err, grerr.EBUSY) {
		t.Fatalf("expected EBUSY while referenced, got %v", err)
	}
}

func TestDelMissingOk(t *testing.T) {
	tbl := NewTable(8, fixedClock(0), 1, nil, allIfacesExist)
	if err := tbl.Del(ip(1, 2, 3, 4), true); err != nil {
		t.Fatalf("expected missing_ok delete to succeed, got %v", err)
	}
	if err := tbl.Del(ip(1, 2, 3, 4), false); !errors.Is(err, grerr.ENOENT) {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestDecrefFreesSlotOnlyAtZeroRefs(t *testing.T) {
	tbl := NewTable(8, fixedClock(0), 1, nil, allIfacesExist)
	host := ip(10, 0, 0, 1)
	tbl.Add(host, 1, mac(1), false)
	idx, nh, _ := tbl.Lookup(host)
	tbl.Incref(nh) // ref_count = 2

	tbl.Decref(idx, nh)
	if _, _, ok := tbl.Lookup(host); !ok {
		t.Fatal("expected entry to survive a decref while still referenced")
	}

	idx, nh, _ = tbl.Lookup(host)
	tbl.Decref(idx, nh)
	if _, _, ok := tbl.Lookup(host); ok {
		t.Fatal("expected entry to be freed once ref_count reaches zero")
	}
	if tbl.Get(idx) != nil {
		t.Fatal("expected slot to be zeroed after the final decref")
	}
}

func TestListAgeUsesInvertedFormula(t *testing.T) {
	tbl := NewTable(8, fixedClock(100), 10, nil, allIfacesExist)
	host := ip(10, 0, 0, 1)
	tbl.Add(host, 1, mac(1), false)
	_, nh, _ := tbl.Lookup(host)
	nh.LastSeen = 50 // "seen" 50 ticks ago relative to a forward clock

	entries := tbl.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	// (last_seen - now) / hz = (50 - 100) / 10 = -5, preserved as-is.
	if entries[0].Age != -5 {
		t.Fatalf("Age = %d, want -5 (inverted formula preserved verbatim)", entries[0].Age)
	}
}

func TestTableFullReturnsENOMEM(t *testing.T) {
	tbl := NewTable(1, fixedClock(0), 1, nil, allIfacesExist)
	if err := tbl.Add(ip(10, 0, 0, 1), 1, mac(1), false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := tbl.Add(ip(10, 0, 0, 2), 1, mac(2), false)
	if !errors.Is(err, grerr.ENOMEM) {
		t.Fatalf("expected ENOMEM when table is full, got %v", err)
	}
}
