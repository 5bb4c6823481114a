package api

// Port request/response bodies (spec §6 port_add/port_del/port_get/port_list).

type PortAddRequest struct {
	Devargs string `json:"devargs"`
	MTU     uint16 `json:"mtu,omitempty"`
	NRxq    uint16 `json:"n_rxq,omitempty"`
	NTxq    uint16 `json:"n_txq,omitempty"`
	RxqSize uint16 `json:"rxq_size,omitempty"`
	MAC     string `json:"mac,omitempty"`
	Up      bool   `json:"up,omitempty"`
}

type PortAddResponse struct {
	Index uint16 `json:"index"`
}

type PortDelRequest struct {
	Index uint16 `json:"index"`
}

type PortGetRequest struct {
	Index uint16 `json:"index"`
}

type PortListRequest struct{}

type PortInfo struct {
	Index   uint16 `json:"index"`
	Devargs string `json:"devargs"`
	MTU     uint16 `json:"mtu"`
	MAC     string `json:"mac"`
}

type PortListResponse struct {
	Ports []PortInfo `json:"ports"`
}

// VLAN request/response bodies (spec §6 vlan_add/vlan_del/vlan_list).

type VLANAddRequest struct {
	ParentIndex uint16 `json:"parent_index"`
	VLANID      uint16 `json:"vlan_id"`
	MAC         string `json:"mac,omitempty"`
	MTU         uint16 `json:"mtu,omitempty"`
}

type VLANAddResponse struct {
	Index uint16 `json:"index"`
}

type VLANDelRequest struct {
	Index uint16 `json:"index"`
}

type VLANListRequest struct{}

type VLANInfo struct {
	Index       uint16 `json:"index"`
	ParentIndex uint16 `json:"parent_index"`
	VLANID      uint16 `json:"vlan_id"`
	MAC         string `json:"mac"`
}

type VLANListResponse struct {
	VLANs []VLANInfo `json:"vlans"`
}

// IPv4 next-hop request/response bodies (spec §6 nh_add/nh_del/nh_list).

type NHAddRequest struct {
	Host     string `json:"host"`
	IfaceID  uint16 `json:"iface_id"`
	MAC      string `json:"mac"`
	ExistOK  bool   `json:"exist_ok,omitempty"`
}

type NHDelRequest struct {
	Host      string `json:"host"`
	MissingOK bool   `json:"missing_ok,omitempty"`
}

type NHListRequest struct{}

type NHInfo struct {
	Host    string `json:"host"`
	IfaceID uint16 `json:"iface_id"`
	MAC     string `json:"mac"`
	Flags   uint8  `json:"flags"`
	Age     int64  `json:"age"`
}

type NHListResponse struct {
	Nexthops []NHInfo `json:"nexthops"`
}
