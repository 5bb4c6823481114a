// Package simnic is an in-memory Device Driver Facade backend. It has no
// third-party dependency the way a pure software test double in this
// codebase never does (see DESIGN.md) — there is no real hardware or
// kernel object behind a simnic device, just maps guarded by a mutex, so
// it stands in for a null/loopback PMD in unit tests and demos.
package simnic

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/vjardin/grout/pkg/ddf"
)

// Device is one simulated NIC, addressable by its devargs string.
type Device struct {
	PortID   uint16
	Devargs  string
	SocketID int
	MAC      net.HardwareAddr

	mu          sync.Mutex
	mtu         uint16
	promisc     bool
	allmulti    bool
	up          bool
	configured  bool
	nRxq, nTxq  uint16
	vlanFilters map[uint16]bool
	mcastAddrs  map[string]bool
	pools       []*ddf.Pool
	attached    bool
	removed     bool
}

// Facade is the simnic implementation of ddf.Facade. Devices are added to
// the topology with AddDevice before the control plane probes them;
// Probe only ever resolves devargs that were pre-registered, mirroring
// how a real PMD only matches devices actually present on the bus.
type Facade struct {
	mu      sync.Mutex
	devices map[uint16]*Device
	nextID  uint16
}

// New returns an empty simulated NIC topology.
func New() *Facade {
	return &Facade{devices: make(map[uint16]*Device)}
}

// AddDevice registers a simulated device at the given devargs and NUMA
// socket, not yet attached. Probe must be called before the control
// plane can use it.
func (f *Facade) AddDevice(devargs string, socketID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	mac := make(net.HardwareAddr, 6)
	mac[0] = 0x02 // locally administered
	mac[5] = byte(id)
	f.devices[id] = &Device{
		PortID:      id,
		Devargs:     devargs,
		SocketID:    socketID,
		MAC:         mac,
		mtu:         1500,
		vlanFilters: make(map[uint16]bool),
		mcastAddrs:  make(map[string]bool),
	}
}

func (f *Facade) device(portID uint16) (*Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[portID]
	if !ok || d.removed {
		return nil, fmt.Errorf("port %d: no such device", portID)
	}
	return d, nil
}

// MatchingPortIDs implements ddf.Facade.
func (f *Facade) MatchingPortIDs(devargs string) []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint16
	for id, d := range f.devices {
		if !d.removed && d.attached && d.Devargs == devargs {
			ids = append(ids, id)
		}
	}
	return ids
}

// Probe implements ddf.Facade. It attaches every AddDevice'd device
// matching devargs and returns their ids. Only attached devices are
// reported by MatchingPortIDs, so the EEXIST check one layer up in
// pkg/port fires only for a device that was already probed.
func (f *Facade) Probe(devargs string) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint16
	for id, d := range f.devices {
		if !d.removed && d.Devargs == devargs {
			d.attached = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no simulated device matches devargs %q", devargs)
	}
	return ids, nil
}

func (f *Facade) SocketID(portID uint16) int {
	d, err := f.device(portID)
	if err != nil {
		return -1
	}
	return d.SocketID
}

func (f *Facade) Info(portID uint16) (ddf.DevInfo, error) {
	d, err := f.device(portID)
	if err != nil {
		return ddf.DevInfo{}, err
	}
	return ddf.DevInfo{
		DeviceName:        d.Devargs,
		DefaultRxRingSize: 1024,
		DefaultTxRingSize: 1024,
		RSSOffloadCapa:    ddf.RSSHashIP | ddf.RSSHashTCP | ddf.RSSHashUDP,
		RxOffloadCapa:     ddf.RxOffloadChecksum,
	}, nil
}

func (f *Facade) Configure(portID uint16, nRxq, nTxq uint16, conf ddf.EthConf) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nRxq, d.nTxq = nRxq, nTxq
	d.configured = true
	return nil
}

func (f *Facade) SetupRxQueue(portID uint16, qid, ringSize uint16, socketID int, pool *ddf.Pool) error {
	_, err := f.device(portID)
	return err
}

func (f *Facade) SetupTxQueue(portID uint16, qid, ringSize uint16, socketID int) error {
	_, err := f.device(portID)
	return err
}

func (f *Facade) Start(portID uint16) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.up = true
	d.mu.Unlock()
	return nil
}

func (f *Facade) Stop(portID uint16) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.up = false
	d.mu.Unlock()
	return nil
}

func (f *Facade) Close(portID uint16) error {
	_, err := f.device(portID)
	return err
}

func (f *Facade) Remove(portID uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[portID]
	if !ok {
		return fmt.Errorf("port %d: no such device", portID)
	}
	d.removed = true
	return nil
}

func (f *Facade) AllocPool(name string, numMbufs uint32, socketID int) (*ddf.Pool, error) {
	return &ddf.Pool{Name: name, NumMbufs: numMbufs, SocketID: socketID}, nil
}

func (f *Facade) FreePool(pool *ddf.Pool) {}

func (f *Facade) SetPromiscuous(portID uint16, on bool) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.promisc = on
	d.mu.Unlock()
	return nil
}

func (f *Facade) Promiscuous(portID uint16) (bool, error) {
	d, err := f.device(portID)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.promisc, nil
}

func (f *Facade) SetAllmulti(portID uint16, on bool) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.allmulti = on
	d.mu.Unlock()
	return nil
}

func (f *Facade) Allmulti(portID uint16) (bool, error) {
	d, err := f.device(portID)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allmulti, nil
}

func (f *Facade) SetLinkUp(portID uint16) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.up = true
	d.mu.Unlock()
	return nil
}

func (f *Facade) SetLinkDown(portID uint16) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.up = false
	d.mu.Unlock()
	return nil
}

func (f *Facade) Link(portID uint16) (ddf.Link, error) {
	d, err := f.device(portID)
	if err != nil {
		return ddf.Link{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	speed := uint32(0)
	if d.up {
		speed = 10000
	}
	return ddf.Link{Up: d.up, SpeedMbs: speed}, nil
}

func (f *Facade) SetMTU(portID uint16, mtu uint16) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.mtu = mtu
	d.mu.Unlock()
	return nil
}

func (f *Facade) MTU(portID uint16) (uint16, error) {
	d, err := f.device(portID)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mtu, nil
}

func (f *Facade) SetMAC(portID uint16, mac net.HardwareAddr) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.MAC = append(net.HardwareAddr(nil), mac...)
	d.mu.Unlock()
	return nil
}

func (f *Facade) MAC(portID uint16) (net.HardwareAddr, error) {
	d, err := f.device(portID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append(net.HardwareAddr(nil), d.MAC...), nil
}

func (f *Facade) SetVLANFilter(portID uint16, vlanID uint16, on bool) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if on {
		d.vlanFilters[vlanID] = true
	} else {
		delete(d.vlanFilters, vlanID)
	}
	return nil
}

func (f *Facade) AddEthAddr(portID uint16, mac net.HardwareAddr) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mcastAddrs[strings.ToLower(mac.String())] = true
	return nil
}

func (f *Facade) DelEthAddr(portID uint16, mac net.HardwareAddr) error {
	d, err := f.device(portID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mcastAddrs, strings.ToLower(mac.String()))
	return nil
}

func (f *Facade) RxQueueBufferMicros(portID, rxqID uint16) uint32 {
	return 0
}

var _ ddf.Facade = (*Facade)(nil)
