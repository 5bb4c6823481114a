// Package nexthop implements the IPv4 Next-Hop Table: a fixed-capacity
// array of next-hop records plus an IP-to-index hash, ref-counted and
// shared between the control-plane handlers in this package and (in a
// full build) the forwarding datapath (spec §4.5).
package nexthop

import (
	"encoding/binary"
	"net"
	"sync/atomic"

	"github.com/vjardin/grout/pkg/grerr"
)

// Flags is the next-hop state bitset.
type Flags uint8

const (
	FlagStatic Flags = 1 << iota
	FlagReachable
	FlagLocal
	FlagLink
)

// Nexthop is one resolved IPv4 next hop: an address, the interface it is
// reachable through, and its link-layer address.
type Nexthop struct {
	IP       uint32
	IfaceID  uint16
	MAC      net.HardwareAddr
	Flags    Flags
	RefCount uint32
	// LastSeen is a monotonic timestamp (ticks, per HZ) set whenever the
	// entry was last used. Zero means "never recorded".
	LastSeen int64
}

// RouteInserter is the route table's host-route installation hook,
// invoked by Add after a next hop is created. The route table itself is
// out of scope for this module (spec Non-goals); a nil RouteInserter
// means host routes are simply not installed, which is adequate for
// exercising the next-hop table in isolation.
type RouteInserter interface {
	InsertHostRoute(ip uint32, nhIdx uint32) error
}

// IfaceExister reports whether an interface id is currently registered,
// the one fact nh4_add needs from the Interface Registry.
type IfaceExister func(ifaceID uint16) bool

// Table is the fixed-capacity next-hop array plus its IP->index hash.
// Capacity is fixed at construction time, matching the original design's
// preallocated rte_hash/rte_calloc pair.
type Table struct {
	slots   []atomic.Pointer[Nexthop]
	byIP    map[uint32]uint32
	free    []uint32
	now     func() int64
	hz      int64
	routes  RouteInserter
	ifaces  IfaceExister
}

// NewTable allocates a table with room for capacity next hops. now
// returns the current monotonic tick count and hz is ticks per second;
// both are injected so age computation is deterministic in tests
// (stand-ins for rte_get_tsc_cycles/rte_get_tsc_hz).
func NewTable(capacity uint32, now func() int64, hz int64, routes RouteInserter, ifaces IfaceExister) *Table {
	free := make([]uint32, capacity)
	for i := range free {
		free[i] = uint32(len(free) - 1 - i) // pop from the end, lowest index first
	}
	return &Table{
		slots:  make([]atomic.Pointer[Nexthop], capacity),
		byIP:   make(map[uint32]uint32),
		free:   free,
		now:    now,
		hz:     hz,
		routes: routes,
		ifaces: ifaces,
	}
}

// Get returns the next hop at idx with no bounds or liveness check, the
// datapath-facing accessor (ip4_nexthop_get). Callers that did not
// obtain idx from Lookup/LookupOrAdd in the same control-thread turn
// must not call this.
func (t *Table) Get(idx uint32) *Nexthop {
	return t.slots[idx].Load()
}

// Lookup resolves ip to its index and record, if present.
func (t *Table) Lookup(ip uint32) (idx uint32, nh *Nexthop, ok bool) {
	idx, ok = t.byIP[ip]
	if !ok {
		return 0, nil, false
	}
	return idx, t.slots[idx].Load(), true
}

// LookupOrAdd resolves ip to an existing record, or allocates a fresh
// zeroed one. The new slot is fully initialized (IP set) and published
// before the hash entry is added, so a concurrent reader never observes
// a hash hit pointing at a half-initialized slot.
func (t *Table) LookupOrAdd(ip uint32) (idx uint32, nh *Nexthop, err error) {
	if idx, nh, ok := t.Lookup(ip); ok {
		return idx, nh, nil
	}
	if len(t.free) == 0 {
		return 0, nil, grerr.New(grerr.ENOMEM, "nexthop.lookup_or_add", "table full")
	}
	idx = t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	nh = &Nexthop{IP: ip}
	t.slots[idx].Store(nh)
	t.byIP[ip] = idx
	return idx, nh, nil
}

// Incref bumps nh's reference count.
func (t *Table) Incref(nh *Nexthop) {
	nh.RefCount++
}

// Decref drops nh's reference count, freeing the slot once it reaches
// zero. The hash entry is removed before the slot is zeroed, so a
// concurrent reader either finds the old hash entry (and a still-valid
// slot) or a hash miss — never a hash hit pointing at a freed slot.
func (t *Table) Decref(idx uint32, nh *Nexthop) {
	if nh.RefCount <= 1 {
		delete(t.byIP, nh.IP)
		t.slots[idx].Store(nil)
		t.free = append(t.free, idx)
		return
	}
	nh.RefCount--
}

// NHAPI is the wire-visible projection of a next hop (spec §6).
type NHAPI struct {
	Host    uint32
	IfaceID uint16
	MAC     net.HardwareAddr
	Flags   Flags
	Age     int64
}

// Add implements the "ipv4 nexthop add" control handler (nh4_add):
// create (or accept an identical existing) static reachable next hop
// and install its host route.
func (t *Table) Add(ip uint32, ifaceID uint16, mac net.HardwareAddr, existOK bool) error {
	if ip == 0 {
		return grerr.New(grerr.EINVAL, "nh.add", "host")
	}
	if t.ifaces != nil && !t.ifaces(ifaceID) {
		return grerr.New(grerr.ENODEV, "nh.add", "iface")
	}

	if _, nh, ok := t.Lookup(ip); ok {
		if existOK && nh.IfaceID == ifaceID && macEqual(nh.MAC, mac) {
			return nil
		}
		return grerr.New(grerr.EEXIST, "nh.add", "host")
	}

	idx, nh, err := t.LookupOrAdd(ip)
	if err != nil {
		return err
	}
	nh.IfaceID = ifaceID
	nh.MAC = append(net.HardwareAddr(nil), mac...)
	nh.Flags = FlagStatic | FlagReachable
	// The host route holds one reference; Del releases it.
	t.Incref(nh)

	if t.routes != nil {
		if err := t.routes.InsertHostRoute(ip, idx); err != nil {
			return grerr.Newf(grerr.EINVAL, "nh.add", "host", "route insert: %v", err)
		}
	}
	return nil
}

// Del implements the "ipv4 nexthop del" control handler (nh4_del). In
// the original, deletion happens as a side effect of deleting the host
// route (ip4_route_delete calling ip4_nexthop_decref); with the route
// table out of scope here, Del decrefs the next hop directly once the
// same preconditions hold.
func (t *Table) Del(ip uint32, missingOK bool) error {
	idx, nh, ok := t.Lookup(ip)
	if !ok {
		if missingOK {
			return nil
		}
		return grerr.New(grerr.ENOENT, "nh.del", "host")
	}
	if nh.Flags&(FlagLocal|FlagLink) != 0 || nh.RefCount > 1 {
		return grerr.New(grerr.EBUSY, "nh.del", "host")
	}
	t.Decref(idx, nh)
	return nil
}

// List implements the "ipv4 nexthop list" control handler (nh4_list).
// Entries are returned in ascending index order for reproducibility;
// the original iterates rte_hash in implementation-defined order.
//
// Age is computed as (last_seen - now) / hz, not (now - last_seen) /
// hz: this is preserved verbatim from the source, where it produces a
// non-positive age for any entry actually seen in the past. See
// SPEC_FULL.md / DESIGN.md — an intentionally-kept open question, not a
// bug to silently fix here.
func (t *Table) List() []NHAPI {
	var out []NHAPI
	for idx := 0; idx < len(t.slots); idx++ {
		nh := t.slots[idx].Load()
		if nh == nil {
			continue
		}
		api := NHAPI{Host: nh.IP, IfaceID: nh.IfaceID, MAC: nh.MAC, Flags: nh.Flags}
		if nh.LastSeen > 0 {
			api.Age = (nh.LastSeen - t.now()) / t.hz
		}
		out = append(out, api)
	}
	return out
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IPv4ToUint32 converts a 4-byte network-order IPv4 address to the
// uint32 key form the table and hash use internally.
func IPv4ToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	return binary.BigEndian.Uint32(v4)
}
