package main

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/vjardin/grout/pkg/api"
	"github.com/vjardin/grout/pkg/grerr"
	"github.com/vjardin/grout/pkg/iface"
	"github.com/vjardin/grout/pkg/nexthop"
	"github.com/vjardin/grout/pkg/port"
	"github.com/vjardin/grout/pkg/util"
	"github.com/vjardin/grout/pkg/vlan"
)

// registerHandlers wires every control-plane operation into registry,
// matching the {name, request_type, callback} contract (spec §6). Every
// callback runs under d.mu, so the registry, port/VLAN subsystems, and
// next-hop table only ever see one caller at a time (spec §5).
func (d *daemon) registerHandlers(registry *api.Registry) {
	registry.Register(&api.Handler{Name: "port_add", RequestType: "port_add", Callback: d.portAdd})
	registry.Register(&api.Handler{Name: "port_del", RequestType: "port_del", Callback: d.portDel})
	registry.Register(&api.Handler{Name: "port_get", RequestType: "port_get", Callback: d.portGet})
	registry.Register(&api.Handler{Name: "port_list", RequestType: "port_list", Callback: d.portList})

	registry.Register(&api.Handler{Name: "vlan_add", RequestType: "vlan_add", Callback: d.vlanAdd})
	registry.Register(&api.Handler{Name: "vlan_del", RequestType: "vlan_del", Callback: d.vlanDel})
	registry.Register(&api.Handler{Name: "vlan_list", RequestType: "vlan_list", Callback: d.vlanList})

	registry.Register(&api.Handler{Name: "nh_add", RequestType: "nh_add", Callback: d.nhAdd})
	registry.Register(&api.Handler{Name: "nh_del", RequestType: "nh_del", Callback: d.nhDel})
	registry.Register(&api.Handler{Name: "nh_list", RequestType: "nh_list", Callback: d.nhList})
}

func parseMAC(s string) (net.HardwareAddr, error) {
	if s == "" {
		return nil, nil
	}
	return net.ParseMAC(s)
}

func (d *daemon) portAdd(body []byte) (interface{}, error) {
	var req api.PortAddRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, grerr.New(grerr.EINVAL, "port_add", "body")
	}
	mac, err := parseMAC(req.MAC)
	if err != nil {
		return nil, grerr.New(grerr.EINVAL, "port_add", "mac")
	}
	if req.MTU != 0 {
		if err := util.ValidateMTU(int(req.MTU)); err != nil {
			return nil, grerr.New(grerr.EINVAL, "port_add", "mtu")
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if f, ok := d.facade.(interface {
		AddDevice(devargs string, socketID int)
	}); ok {
		f.AddDevice(req.Devargs, 0)
	}

	var flags iface.Flags
	if req.Up {
		flags = iface.FlagUp
	}
	apiInfo := &port.APIInfo{Devargs: req.Devargs, NRxq: req.NRxq, NTxq: req.NTxq, RxqSize: req.RxqSize, MAC: mac}
	ifc, err := d.ifaces.Create(iface.TypePort, iface.CommonAttrs{Flags: flags, MTU: req.MTU}, apiInfo)
	if err != nil {
		return nil, err
	}
	return &api.PortAddResponse{Index: ifc.ID}, nil
}

func (d *daemon) portDel(body []byte) (interface{}, error) {
	var req api.PortDelRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, grerr.New(grerr.EINVAL, "port_del", "body")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return nil, d.ifaces.Destroy(req.Index)
}

func (d *daemon) portGet(body []byte) (interface{}, error) {
	var req api.PortGetRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, grerr.New(grerr.EINVAL, "port_get", "body")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	ifc, ok := d.ifaces.FromID(req.Index)
	if !ok || ifc.TypeID != iface.TypePort {
		return nil, grerr.New(grerr.ENODEV, "port_get", fmt.Sprintf("%d", req.Index))
	}
	return portToAPI(ifc), nil
}

func (d *daemon) portList(body []byte) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out api.PortListResponse
	var cursor uint16
	for {
		ifc := d.ifaces.Next(iface.TypePort, cursor)
		if ifc == nil {
			break
		}
		cursor = ifc.ID
		out.Ports = append(out.Ports, *portToAPI(ifc))
	}
	return &out, nil
}

func portToAPI(ifc *iface.Iface) *api.PortInfo {
	p := ifc.Info.(*port.Info)
	return &api.PortInfo{Index: ifc.ID, Devargs: p.Devargs, MTU: ifc.MTU, MAC: p.MAC.String()}
}

func (d *daemon) vlanAdd(body []byte) (interface{}, error) {
	var req api.VLANAddRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, grerr.New(grerr.EINVAL, "vlan_add", "body")
	}
	mac, err := parseMAC(req.MAC)
	if err != nil {
		return nil, grerr.New(grerr.EINVAL, "vlan_add", "mac")
	}
	if err := util.ValidateVLANID(int(req.VLANID)); err != nil {
		return nil, grerr.New(grerr.EINVAL, "vlan_add", "vlan_id")
	}
	if req.MTU != 0 {
		if err := util.ValidateMTU(int(req.MTU)); err != nil {
			return nil, grerr.New(grerr.EINVAL, "vlan_add", "mtu")
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	apiInfo := &vlan.APIInfo{ParentID: req.ParentIndex, VLANID: req.VLANID, MAC: mac}
	ifc, err := d.ifaces.Create(iface.TypeVLAN, iface.CommonAttrs{MTU: req.MTU}, apiInfo)
	if err != nil {
		return nil, err
	}
	return &api.VLANAddResponse{Index: ifc.ID}, nil
}

func (d *daemon) vlanDel(body []byte) (interface{}, error) {
	var req api.VLANDelRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, grerr.New(grerr.EINVAL, "vlan_del", "body")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return nil, d.ifaces.Destroy(req.Index)
}

func (d *daemon) vlanList(body []byte) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out api.VLANListResponse
	var cursor uint16
	for {
		ifc := d.ifaces.Next(iface.TypeVLAN, cursor)
		if ifc == nil {
			break
		}
		cursor = ifc.ID
		v := ifc.Info.(*vlan.Info)
		out.VLANs = append(out.VLANs, api.VLANInfo{Index: ifc.ID, ParentIndex: v.ParentID, VLANID: v.VLANID, MAC: v.MAC.String()})
	}
	return &out, nil
}

func (d *daemon) nhAdd(body []byte) (interface{}, error) {
	var req api.NHAddRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, grerr.New(grerr.EINVAL, "nh_add", "body")
	}
	ip, err := util.ParseIPv4(req.Host)
	if err != nil {
		return nil, grerr.New(grerr.EINVAL, "nh_add", "host")
	}
	mac, err := net.ParseMAC(req.MAC)
	if err != nil {
		return nil, grerr.New(grerr.EINVAL, "nh_add", "mac")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return nil, d.nexthops.Add(nexthop.IPv4ToUint32(ip), req.IfaceID, mac, req.ExistOK)
}

func (d *daemon) nhDel(body []byte) (interface{}, error) {
	var req api.NHDelRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, grerr.New(grerr.EINVAL, "nh_del", "body")
	}
	ip, err := util.ParseIPv4(req.Host)
	if err != nil {
		return nil, grerr.New(grerr.EINVAL, "nh_del", "host")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return nil, d.nexthops.Del(nexthop.IPv4ToUint32(ip), req.MissingOK)
}

func (d *daemon) nhList(body []byte) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.nexthops.List()
	out := api.NHListResponse{Nexthops: make([]api.NHInfo, 0, len(entries))}
	for _, nh := range entries {
		ip := make(net.IP, 4)
		ipVal := nh.Host
		ip[0] = byte(ipVal >> 24)
		ip[1] = byte(ipVal >> 16)
		ip[2] = byte(ipVal >> 8)
		ip[3] = byte(ipVal)
		out.Nexthops = append(out.Nexthops, api.NHInfo{
			Host:    ip.String(),
			IfaceID: nh.IfaceID,
			MAC:     nh.MAC.String(),
			Flags:   uint8(nh.Flags),
			Age:     nh.Age,
		})
	}
	return &out, nil
}
