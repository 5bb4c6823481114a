// Package iface implements the Interface Registry: the process-wide
// id-keyed store of network interfaces (physical ports, VLAN
// sub-interfaces, and any future type) behind a common reconfiguration
// contract. All mutations happen on the single control thread (spec
// §5); the registry itself needs no internal locking — the datapath
// never reads an Iface directly, only the queue maps and next-hop
// records derived from one.
package iface

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/vjardin/grout/pkg/grerr"
	"github.com/vjardin/grout/pkg/grlog"
)

// TypeID tags which Type governs an interface. The set is open: new
// types register themselves at module-init time (spec §9). PORT and
// VLAN are the two baseline types; their numeric values are part of the
// wire contract and must not change.
type TypeID uint16

const (
	TypePort TypeID = 1
	TypeVLAN TypeID = 2
)

// Flags is the common flag bitset {UP, PROMISC, ALLMULTI, ...}.
type Flags uint16

const (
	FlagUp Flags = 1 << iota
	FlagPromisc
	FlagAllmulti
)

// State is the common observed-state bitset; RUNNING mirrors link up.
type State uint16

const (
	StateRunning State = 1 << iota
)

// Iface is the common interface header shared by every type. Info holds
// the type-specific payload (e.g. *port.Info, *vlan.Info), exclusively
// owned by the interface.
type Iface struct {
	ID            uint16
	TypeID        TypeID
	Flags         Flags
	State         State
	MTU           uint16
	VRFID         uint16
	Info          interface{}
	Subinterfaces map[uint16]struct{}
}

// CommonAttrs carries the common fields a reconfig call may update,
// gated by SetFlags/SetMTU/SetVRF in the mask.
type CommonAttrs struct {
	Flags Flags
	MTU   uint16
	VRFID uint16
}

// Type is the fixed capability table every interface type implements
// (spec §9). AddEthAddr/DelEthAddr are optional — a type that does not
// manage MAC filtering (e.g. a raw port) leaves them nil.
type Type struct {
	ID       TypeID
	Name     string
	Init     func(ifc *Iface, apiInfo interface{}) error
	Reconfig func(ifc *Iface, mask SetAttrs, common CommonAttrs, apiInfo interface{}) error
	Fini     func(ifc *Iface) error

	GetEthAddr func(ifc *Iface) (net.HardwareAddr, error)
	AddEthAddr func(ifc *Iface, mac net.HardwareAddr) error
	DelEthAddr func(ifc *Iface, mac net.HardwareAddr) error
	ToAPI      func(ifc *Iface) interface{}
}

// Registry is the process-wide interface store.
type Registry struct {
	types  map[TypeID]*Type
	ifaces map[uint16]*Iface
	nextID uint16
}

// NewRegistry returns an empty registry. Types must be registered before
// any Create call names them.
func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[TypeID]*Type),
		ifaces: make(map[uint16]*Iface),
	}
}

// RegisterType installs a type descriptor. Types are registered once at
// startup, before the transport starts accepting requests (spec §9).
func (r *Registry) RegisterType(t *Type) {
	if _, exists := r.types[t.ID]; exists {
		panic(fmt.Sprintf("iface: type %d (%s) registered twice", t.ID, t.Name))
	}
	r.types[t.ID] = t
}

func (r *Registry) typeOf(id TypeID) (*Type, error) {
	t, ok := r.types[id]
	if !ok {
		return nil, grerr.New(grerr.EINVAL, "iface.create", fmt.Sprintf("type %d", id))
	}
	return t, nil
}

// Create allocates an interface with a fresh id, invokes the type's
// Init with SetAll implicitly in effect, and on failure releases the id
// and returns the error.
func (r *Registry) Create(typeID TypeID, common CommonAttrs, apiInfo interface{}) (*Iface, error) {
	t, err := r.typeOf(typeID)
	if err != nil {
		return nil, err
	}
	r.nextID++
	id := r.nextID
	ifc := &Iface{
		ID:            id,
		TypeID:        typeID,
		Flags:         common.Flags,
		MTU:           common.MTU,
		VRFID:         common.VRFID,
		Subinterfaces: make(map[uint16]struct{}),
	}
	r.ifaces[id] = ifc
	if err := t.Init(ifc, apiInfo); err != nil {
		delete(r.ifaces, id)
		r.nextID--
		return nil, err
	}
	grlog.WithIface(id).WithField("type", t.Name).Info("interface created")
	return ifc, nil
}

// Destroy calls the type's Fini and releases the interface. Fini is
// responsible for undoing every side effect init/reconfig made,
// including detaching from a parent.
func (r *Registry) Destroy(id uint16) error {
	ifc, ok := r.ifaces[id]
	if !ok {
		return grerr.New(unix.ENODEV, "iface.destroy", fmt.Sprintf("%d", id))
	}
	t, err := r.typeOf(ifc.TypeID)
	if err != nil {
		return err
	}
	err = t.Fini(ifc)
	delete(r.ifaces, id)
	grlog.WithIface(id).Info("interface destroyed")
	return err
}

// Reconfig delegates to the type's Reconfig callback.
func (r *Registry) Reconfig(id uint16, mask SetAttrs, common CommonAttrs, apiInfo interface{}) error {
	ifc, ok := r.ifaces[id]
	if !ok {
		return grerr.New(unix.ENODEV, "iface.reconfig", fmt.Sprintf("%d", id))
	}
	t, err := r.typeOf(ifc.TypeID)
	if err != nil {
		return err
	}
	return t.Reconfig(ifc, mask, common, apiInfo)
}

// GetEthAddr returns the MAC address of interface id via its type's
// GetEthAddr callback.
func (r *Registry) GetEthAddr(id uint16) (net.HardwareAddr, error) {
	ifc, ok := r.ifaces[id]
	if !ok {
		return nil, grerr.New(unix.ENODEV, "iface.get_eth_addr", fmt.Sprintf("%d", id))
	}
	t, err := r.typeOf(ifc.TypeID)
	if err != nil {
		return nil, err
	}
	if t.GetEthAddr == nil {
		return nil, grerr.New(grerr.ENOTSUP, "iface.get_eth_addr", t.Name)
	}
	return t.GetEthAddr(ifc)
}

// AddEthAddr registers mac as an additional filtered address on
// interface id, via its type's AddEthAddr callback. A type that leaves
// AddEthAddr nil gets ENOTSUP.
func (r *Registry) AddEthAddr(id uint16, mac net.HardwareAddr) error {
	ifc, ok := r.ifaces[id]
	if !ok {
		return grerr.New(unix.ENODEV, "iface.add_eth_addr", fmt.Sprintf("%d", id))
	}
	t, err := r.typeOf(ifc.TypeID)
	if err != nil {
		return err
	}
	if t.AddEthAddr == nil {
		return grerr.New(grerr.ENOTSUP, "iface.add_eth_addr", t.Name)
	}
	return t.AddEthAddr(ifc, mac)
}

// DelEthAddr removes mac from interface id's filtered address set, via
// its type's DelEthAddr callback.
func (r *Registry) DelEthAddr(id uint16, mac net.HardwareAddr) error {
	ifc, ok := r.ifaces[id]
	if !ok {
		return grerr.New(unix.ENODEV, "iface.del_eth_addr", fmt.Sprintf("%d", id))
	}
	t, err := r.typeOf(ifc.TypeID)
	if err != nil {
		return err
	}
	if t.DelEthAddr == nil {
		return grerr.New(grerr.ENOTSUP, "iface.del_eth_addr", t.Name)
	}
	return t.DelEthAddr(ifc, mac)
}

// FromID looks up an interface by id.
func (r *Registry) FromID(id uint16) (*Iface, bool) {
	ifc, ok := r.ifaces[id]
	return ifc, ok
}

// Next returns the next interface of the given type after cursor (0 to
// start), in ascending id order, or nil when iteration is exhausted. If
// typeFilter is 0, all types are visited.
func (r *Registry) Next(typeFilter TypeID, cursor uint16) *Iface {
	var best *Iface
	for id, ifc := range r.ifaces {
		if id <= cursor {
			continue
		}
		if typeFilter != 0 && ifc.TypeID != typeFilter {
			continue
		}
		if best == nil || id < best.ID {
			best = ifc
		}
	}
	return best
}

// AddSubinterface records child as a subinterface of parent.
func (r *Registry) AddSubinterface(parent *Iface, child uint16) {
	parent.Subinterfaces[child] = struct{}{}
}

// DelSubinterface removes child from parent's subinterface set.
func (r *Registry) DelSubinterface(parent *Iface, child uint16) {
	delete(parent.Subinterfaces, child)
}
