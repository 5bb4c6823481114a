// Package netlinkdev is a Device Driver Facade backend that drives real
// Linux network devices (veth/dummy interfaces, typically in a throwaway
// network namespace for tests) via github.com/vishvananda/netlink — the
// same netlink library the rest of the retrieval pack's cilium repo
// depends on directly. Queue setup and VLAN hardware filtering have no
// meaning for a software link, so those calls return ENOTSUP. The VLAN
// subsystem tolerates ENOTSUP from a filter enable; the Port subsystem
// treats a failed queue setup as a configuration error.
package netlinkdev

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/vjardin/grout/pkg/ddf"
)

// Facade maps DDF port ids onto Linux link names.
type Facade struct {
	links map[uint16]string
	rev   map[string]uint16
	next  uint16
}

// New returns a Facade with no devices registered yet.
func New() *Facade {
	return &Facade{links: make(map[uint16]string), rev: make(map[string]uint16)}
}

// AddDevice associates devargs (treated as a literal Linux interface
// name, e.g. "veth0") with a fresh port id. The link must already exist
// in the current network namespace.
func (f *Facade) AddDevice(devargs string) {
	id := f.next
	f.next++
	f.links[id] = devargs
	f.rev[devargs] = id
}

func (f *Facade) linkByPort(portID uint16) (netlink.Link, error) {
	name, ok := f.links[portID]
	if !ok {
		return nil, fmt.Errorf("port %d: no such device", portID)
	}
	return netlink.LinkByName(name)
}

func (f *Facade) MatchingPortIDs(devargs string) []uint16 {
	if id, ok := f.rev[devargs]; ok {
		if _, err := netlink.LinkByName(devargs); err == nil {
			return []uint16{id}
		}
	}
	return nil
}

func (f *Facade) Probe(devargs string) ([]uint16, error) {
	link, err := netlink.LinkByName(devargs)
	if err != nil {
		return nil, fmt.Errorf("netlink: link %q not found: %w", devargs, err)
	}
	id, ok := f.rev[devargs]
	if !ok {
		id = f.next
		f.next++
		f.links[id] = devargs
		f.rev[devargs] = id
	}
	_ = link
	return []uint16{id}, nil
}

func (f *Facade) SocketID(portID uint16) int {
	// Linux does not expose NUMA affinity for a generic netlink Link;
	// treat every software device as socket-unconstrained.
	return -1
}

func (f *Facade) Info(portID uint16) (ddf.DevInfo, error) {
	link, err := f.linkByPort(portID)
	if err != nil {
		return ddf.DevInfo{}, err
	}
	return ddf.DevInfo{
		DeviceName:        link.Attrs().Name,
		DefaultRxRingSize: 1024,
		DefaultTxRingSize: 1024,
		RSSOffloadCapa:    0,
		RxOffloadCapa:     0,
	}, nil
}

func (f *Facade) Configure(portID uint16, nRxq, nTxq uint16, conf ddf.EthConf) error {
	_, err := f.linkByPort(portID)
	return err
}

func (f *Facade) SetupRxQueue(portID uint16, qid, ringSize uint16, socketID int, pool *ddf.Pool) error {
	return unix.ENOTSUP
}

func (f *Facade) SetupTxQueue(portID uint16, qid, ringSize uint16, socketID int) error {
	return unix.ENOTSUP
}

func (f *Facade) Start(portID uint16) error {
	link, err := f.linkByPort(portID)
	if err != nil {
		return err
	}
	return netlink.LinkSetUp(link)
}

func (f *Facade) Stop(portID uint16) error {
	link, err := f.linkByPort(portID)
	if err != nil {
		return err
	}
	return netlink.LinkSetDown(link)
}

func (f *Facade) Close(portID uint16) error {
	return f.Stop(portID)
}

func (f *Facade) Remove(portID uint16) error {
	name, ok := f.links[portID]
	if !ok {
		return fmt.Errorf("port %d: no such device", portID)
	}
	delete(f.rev, name)
	delete(f.links, portID)
	return nil
}

func (f *Facade) AllocPool(name string, numMbufs uint32, socketID int) (*ddf.Pool, error) {
	return &ddf.Pool{Name: name, NumMbufs: numMbufs, SocketID: socketID}, nil
}

func (f *Facade) FreePool(pool *ddf.Pool) {}

func (f *Facade) SetPromiscuous(portID uint16, on bool) error {
	link, err := f.linkByPort(portID)
	if err != nil {
		return err
	}
	if on {
		return netlink.SetPromiscOn(link)
	}
	return netlink.SetPromiscOff(link)
}

func (f *Facade) Promiscuous(portID uint16) (bool, error) {
	link, err := f.linkByPort(portID)
	if err != nil {
		return false, err
	}
	return link.Attrs().Promisc != 0, nil
}

func (f *Facade) SetAllmulti(portID uint16, on bool) error {
	return unix.ENOTSUP
}

func (f *Facade) Allmulti(portID uint16) (bool, error) {
	return false, unix.ENOTSUP
}

func (f *Facade) SetLinkUp(portID uint16) error {
	return f.Start(portID)
}

func (f *Facade) SetLinkDown(portID uint16) error {
	return f.Stop(portID)
}

func (f *Facade) Link(portID uint16) (ddf.Link, error) {
	link, err := f.linkByPort(portID)
	if err != nil {
		return ddf.Link{}, err
	}
	attrs := link.Attrs()
	up := attrs.Flags&net.FlagUp != 0
	return ddf.Link{Up: up}, nil
}

func (f *Facade) SetMTU(portID uint16, mtu uint16) error {
	link, err := f.linkByPort(portID)
	if err != nil {
		return err
	}
	return netlink.LinkSetMTU(link, int(mtu))
}

func (f *Facade) MTU(portID uint16) (uint16, error) {
	link, err := f.linkByPort(portID)
	if err != nil {
		return 0, err
	}
	return uint16(link.Attrs().MTU), nil
}

func (f *Facade) SetMAC(portID uint16, mac net.HardwareAddr) error {
	link, err := f.linkByPort(portID)
	if err != nil {
		return err
	}
	return netlink.LinkSetHardwareAddr(link, mac)
}

func (f *Facade) MAC(portID uint16) (net.HardwareAddr, error) {
	link, err := f.linkByPort(portID)
	if err != nil {
		return nil, err
	}
	return link.Attrs().HardwareAddr, nil
}

func (f *Facade) SetVLANFilter(portID uint16, vlanID uint16, on bool) error {
	// Software veth/dummy links do not implement hardware VLAN
	// filtering; the VLAN subsystem is specified to tolerate this.
	return unix.ENOTSUP
}

func (f *Facade) AddEthAddr(portID uint16, mac net.HardwareAddr) error {
	return unix.ENOTSUP
}

func (f *Facade) DelEthAddr(portID uint16, mac net.HardwareAddr) error {
	return unix.ENOTSUP
}

func (f *Facade) RxQueueBufferMicros(portID, rxqID uint16) uint32 {
	return 0
}

var _ ddf.Facade = (*Facade)(nil)
