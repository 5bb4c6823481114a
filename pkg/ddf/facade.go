// Package ddf defines the Device Driver Facade: the capability set the
// Port and VLAN subsystems consume to drive an underlying network device.
// The core never talks to a device directly — every probe, queue setup,
// or filter change goes through this interface, so the subsystems in
// pkg/port and pkg/vlan stay backend-agnostic (see pkg/ddf/simnic and
// pkg/ddf/netlinkdev for the two reference implementations).
package ddf

import "net"

// RSS hash function bits, a small subset of what a real NIC would
// advertise; enough to exercise the masking logic in port_configure.
const (
	RSSHashIP uint64 = 1 << iota
	RSSHashTCP
	RSSHashUDP
)

// Rx offload bits, likewise a minimal stand-in.
const (
	RxOffloadChecksum uint64 = 1 << iota
)

// MQMode selects the device's receive-side multi-queue distribution mode.
type MQMode int

const (
	MQModeNone MQMode = iota
	MQModeRSS
)

// DevInfo reports a device's static capabilities and defaults, the
// equivalent of rte_eth_dev_info_get.
type DevInfo struct {
	DeviceName        string
	DefaultRxRingSize uint16
	DefaultTxRingSize uint16
	RSSOffloadCapa    uint64
	RxOffloadCapa     uint64
}

// EthConf is the configuration passed to Configure: the requested RSS
// hash functions and rx offloads, already masked against DevInfo by the
// caller per spec step 4.2.5.
type EthConf struct {
	RSSHashFuncs uint64
	RxOffloads   uint64
	MQMode       MQMode
}

// Link reports a device's observed link state.
type Link struct {
	Up       bool
	SpeedMbs uint32
}

// Pool is an opaque handle to a packet buffer pool exclusively owned by
// one port, allocated on a given NUMA socket.
type Pool struct {
	Name     string
	NumMbufs uint32
	SocketID int
}

// Facade is the full capability set a PORT or VLAN interface may call.
// Queue setup, filter, and MAC operations take a portID assigned by
// Probe; callers never construct one themselves.
type Facade interface {
	// Probe resolves devargs to zero or more matching device ids, probing
	// (attaching) the device if it is not already attached. Returns the
	// matching port ids after probing.
	Probe(devargs string) ([]uint16, error)
	// MatchingPortIDs enumerates already-probed devices matching devargs,
	// without probing. Used by Probe to detect an EEXIST condition.
	MatchingPortIDs(devargs string) []uint16

	SocketID(portID uint16) int
	Info(portID uint16) (DevInfo, error)
	Configure(portID uint16, nRxq, nTxq uint16, conf EthConf) error
	SetupRxQueue(portID uint16, qid, ringSize uint16, socketID int, pool *Pool) error
	SetupTxQueue(portID uint16, qid, ringSize uint16, socketID int) error
	Start(portID uint16) error
	Stop(portID uint16) error
	Close(portID uint16) error
	Remove(portID uint16) error

	AllocPool(name string, numMbufs uint32, socketID int) (*Pool, error)
	FreePool(pool *Pool)

	SetPromiscuous(portID uint16, on bool) error
	Promiscuous(portID uint16) (bool, error)
	SetAllmulti(portID uint16, on bool) error
	Allmulti(portID uint16) (bool, error)
	SetLinkUp(portID uint16) error
	SetLinkDown(portID uint16) error
	Link(portID uint16) (Link, error)

	SetMTU(portID uint16, mtu uint16) error
	MTU(portID uint16) (uint16, error)
	SetMAC(portID uint16, mac net.HardwareAddr) error
	MAC(portID uint16) (net.HardwareAddr, error)

	SetVLANFilter(portID uint16, vlanID uint16, on bool) error

	// AddEthAddr / DelEthAddr manage the multicast MAC filter list on a
	// port (used by VLAN sub-interfaces to receive multicast traffic
	// tagged for them). Optional in the sense that a real driver may
	// lack hardware MAC filtering — implementations should return
	// ENOTSUP rather than panic.
	AddEthAddr(portID uint16, mac net.HardwareAddr) error
	DelEthAddr(portID uint16, mac net.HardwareAddr) error

	// RxQueueBufferMicros reports how long, in microseconds, a full rx
	// ring can buffer packets at the current link speed. Supplemental
	// capability (see SPEC_FULL.md); the core does not call it.
	RxQueueBufferMicros(portID, rxqID uint16) uint32
}
