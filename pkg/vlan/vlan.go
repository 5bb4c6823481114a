// Package vlan implements the VLAN Subsystem: 802.1Q sub-interfaces
// keyed by (parent interface, vlan id), each owning a hardware VLAN
// filter entry and a multicast MAC filter on the parent port (spec
// §4.3).
package vlan

import (
	"bytes"
	"errors"
	"fmt"
	"net"

	"github.com/vjardin/grout/pkg/ddf"
	"github.com/vjardin/grout/pkg/grerr"
	"github.com/vjardin/grout/pkg/grlog"
	"github.com/vjardin/grout/pkg/iface"
	"github.com/vjardin/grout/pkg/port"
)

// filterEnableTolerated reports whether err is one of the errno kinds
// the VLAN filter enable path is specified to swallow (not every device
// implements hardware VLAN filtering), regardless of whether the DDF
// backend wrapped it in a *grerr.Error or returned the errno directly.
func filterEnableTolerated(err error) bool {
	return errors.Is(err, grerr.ENOTSUP) || errors.Is(err, grerr.ENOSYS)
}

// Info is the VLAN interface's type-specific payload.
type Info struct {
	ParentID uint16
	VLANID   uint16
	MAC      net.HardwareAddr
}

// APIInfo is the request payload for creating or reconfiguring a VLAN
// sub-interface.
type APIInfo struct {
	ParentID uint16
	VLANID   uint16
	MAC      net.HardwareAddr
}

type key struct {
	ParentID uint16
	VLANID   uint16
}

// Subsystem implements the VLAN iface.Type. It owns the
// (parent,vlan)->iface lookup table (vlan_hash in the original design).
type Subsystem struct {
	ddf    ddf.Facade
	ifaces *iface.Registry
	byKey  map[key]*iface.Iface
}

// New wires a Subsystem to its collaborators.
func New(d ddf.Facade, ifaces *iface.Registry) *Subsystem {
	return &Subsystem{ddf: d, ifaces: ifaces, byKey: make(map[key]*iface.Iface)}
}

// Type returns the iface.Type descriptor to register.
func (s *Subsystem) Type() *iface.Type {
	return &iface.Type{
		ID:         iface.TypeVLAN,
		Name:       "vlan",
		Init:       s.init,
		Reconfig:   s.reconfig,
		Fini:       s.fini,
		GetEthAddr: s.getEthAddr,
		AddEthAddr: s.addEthAddr,
		DelEthAddr: s.delEthAddr,
		ToAPI:      s.toAPI,
	}
}

// Lookup finds the VLAN sub-interface for (parentID, vlanID), mirroring
// vlan_get_iface.
func (s *Subsystem) Lookup(parentID, vlanID uint16) (*iface.Iface, bool) {
	ifc, ok := s.byKey[key{parentID, vlanID}]
	return ifc, ok
}

// parentPortID resolves the underlying DDF port id for a PORT-typed
// parent interface. A VLAN's parent must be a port; anything else is a
// medium-type mismatch.
func (s *Subsystem) parentPortID(parent *iface.Iface) (uint16, error) {
	if parent.TypeID != iface.TypePort {
		return 0, grerr.New(grerr.EMEDIUMTYPE, "vlan", fmt.Sprintf("parent %d", parent.ID))
	}
	p := parent.Info.(*port.Info)
	return p.PortID, nil
}

func (s *Subsystem) init(ifc *iface.Iface, apiInfo interface{}) error {
	ifc.Info = &Info{}
	if err := s.reconfig(ifc, iface.SetAll, iface.CommonAttrs{Flags: ifc.Flags, MTU: ifc.MTU, VRFID: ifc.VRFID}, apiInfo); err != nil {
		_ = s.fini(ifc)
		return err
	}
	return nil
}

func (s *Subsystem) reconfig(ifc *iface.Iface, mask iface.SetAttrs, common iface.CommonAttrs, apiInfo interface{}) error {
	cur := ifc.Info.(*Info)
	api := apiInfo.(*APIInfo)
	reconfiguring := mask != iface.SetAll

	// The VLAN's MAC is a multicast filter on the parent; a zero or empty
	// MAC is accepted, any other unicast address is rejected.
	if mask.Has(iface.SetMAC) && len(api.MAC) > 0 && api.MAC[0]&0x01 == 0 &&
		!bytes.Equal(api.MAC, make(net.HardwareAddr, len(api.MAC))) {
		return grerr.New(grerr.EINVAL, "vlan.reconfig", fmt.Sprintf("%d", ifc.ID))
	}

	var curParent *iface.Iface
	if reconfiguring {
		var ok bool
		curParent, ok = s.ifaces.FromID(cur.ParentID)
		if !ok {
			return grerr.New(grerr.ENODEV, "vlan.reconfig", fmt.Sprintf("parent %d", cur.ParentID))
		}
	}
	nextParent, ok := s.ifaces.FromID(api.ParentID)
	if !ok {
		return grerr.New(grerr.ENODEV, "vlan.reconfig", fmt.Sprintf("parent %d", api.ParentID))
	}

	if mask.Any(iface.SetParent | iface.SetVLAN) {
		nextKey := key{api.ParentID, api.VLANID}
		nextPortID, err := s.parentPortID(nextParent)
		if err != nil {
			return err
		}
		if _, exists := s.byKey[nextKey]; exists {
			return grerr.New(grerr.EADDRINUSE, "vlan.reconfig", fmt.Sprintf("%d/%d", api.ParentID, api.VLANID))
		}

		if reconfiguring {
			curKey := key{cur.ParentID, cur.VLANID}
			delete(s.byKey, curKey)
			s.ifaces.DelSubinterface(curParent, ifc.ID)

			if curPortID, err := s.parentPortID(curParent); err == nil {
				if err := s.ddf.SetVLANFilter(curPortID, cur.VLANID, false); err != nil {
					grlog.WithIface(ifc.ID).Warnf("vlan filter disable: %v", err)
				}
			}
		}

		if err := s.ddf.SetVLANFilter(nextPortID, api.VLANID, true); err != nil {
			grlog.WithIface(ifc.ID).Warnf("vlan filter enable: %v", err)
			if !filterEnableTolerated(err) {
				return grerr.Newf(grerr.EINVAL, "vlan.reconfig", fmt.Sprintf("%d", api.VLANID), "filter enable: %v", err)
			}
		}

		cur.ParentID = api.ParentID
		cur.VLANID = api.VLANID
		s.ifaces.AddSubinterface(nextParent, ifc.ID)
		s.byKey[nextKey] = ifc
	}

	if mask.Has(iface.SetMAC) {
		if reconfiguring {
			// Best-effort: the previous filter entry is going away
			// regardless of whether removal succeeds.
			_ = s.ifaces.DelEthAddr(cur.ParentID, cur.MAC)
		}
		if err := s.ifaces.AddEthAddr(nextParent.ID, api.MAC); err != nil {
			return err
		}
		cur.MAC = append(net.HardwareAddr(nil), api.MAC...)
	}

	if mask.Has(iface.SetFlags) {
		ifc.Flags = common.Flags
	}
	if mask.Has(iface.SetMTU) {
		ifc.MTU = common.MTU
	}
	if mask.Has(iface.SetVRF) {
		ifc.VRFID = common.VRFID
	}

	return nil
}

func (s *Subsystem) fini(ifc *iface.Iface) error {
	cur := ifc.Info.(*Info)
	parent, ok := s.ifaces.FromID(cur.ParentID)
	if !ok {
		return grerr.New(grerr.ENODEV, "vlan.fini", fmt.Sprintf("parent %d", cur.ParentID))
	}
	portID, err := s.parentPortID(parent)
	if err != nil {
		return err
	}

	delete(s.byKey, key{cur.ParentID, cur.VLANID})

	var status error
	if err := s.ddf.SetVLANFilter(portID, cur.VLANID, false); err != nil {
		grlog.WithIface(ifc.ID).Warnf("vlan filter disable: %v", err)
		if status == nil {
			status = err
		}
	}
	if err := s.ifaces.DelEthAddr(cur.ParentID, cur.MAC); err != nil {
		if status == nil {
			status = err
		}
	}

	s.ifaces.DelSubinterface(parent, ifc.ID)
	return status
}

func (s *Subsystem) getEthAddr(ifc *iface.Iface) (net.HardwareAddr, error) {
	cur := ifc.Info.(*Info)
	return cur.MAC, nil
}

// addEthAddr and delEthAddr implement the VLAN type's own capability:
// adding/removing a multicast address on behalf of this sub-interface
// forwards to the parent's filter, rejecting anything but a multicast
// address (spec §4.3 edge case).
func (s *Subsystem) addEthAddr(ifc *iface.Iface, mac net.HardwareAddr) error {
	cur := ifc.Info.(*Info)
	if len(mac) == 0 || (mac[0]&0x01) == 0 {
		return grerr.New(grerr.EINVAL, "vlan.add_eth_addr", fmt.Sprintf("%d", ifc.ID))
	}
	return s.ifaces.AddEthAddr(cur.ParentID, mac)
}

func (s *Subsystem) delEthAddr(ifc *iface.Iface, mac net.HardwareAddr) error {
	cur := ifc.Info.(*Info)
	if len(mac) == 0 || (mac[0]&0x01) == 0 {
		return grerr.New(grerr.EINVAL, "vlan.del_eth_addr", fmt.Sprintf("%d", ifc.ID))
	}
	return s.ifaces.DelEthAddr(cur.ParentID, mac)
}

// APIVLAN is the wire-visible projection of a VLAN sub-interface.
type APIVLAN struct {
	Index    uint16
	ParentID uint16
	VLANID   uint16
	MAC      net.HardwareAddr
}

func (s *Subsystem) toAPI(ifc *iface.Iface) interface{} {
	cur := ifc.Info.(*Info)
	return &APIVLAN{Index: ifc.ID, ParentID: cur.ParentID, VLANID: cur.VLANID, MAC: cur.MAC}
}
