package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/vjardin/grout/pkg/api"
	"github.com/vjardin/grout/pkg/config"
	"github.com/vjardin/grout/pkg/ddf"
	"github.com/vjardin/grout/pkg/ddf/netlinkdev"
	"github.com/vjardin/grout/pkg/ddf/simnic"
	"github.com/vjardin/grout/pkg/grlog"
	"github.com/vjardin/grout/pkg/iface"
	"github.com/vjardin/grout/pkg/nexthop"
	"github.com/vjardin/grout/pkg/port"
	"github.com/vjardin/grout/pkg/vlan"
	"github.com/vjardin/grout/pkg/worker"
)

// daemon bundles every wired subsystem, so the API handlers registered
// in handlers.go can close over a single receiver.
type daemon struct {
	facade   ddf.Facade
	workers  *worker.Registry
	ifaces   *iface.Registry
	ports    *port.Subsystem
	vlans    *vlan.Subsystem
	nexthops *nexthop.Table

	mu sync.Mutex // serializes API handler calls onto one control thread (spec §5)
}

// newCPUAllocator returns a worker.NewCPUFunc that hands out host CPU
// ids sequentially, skipping CPU 0 (reserved for the control thread).
// All cores report NUMA node 0: grouted targets veth/simnic devices
// where NUMA locality is not meaningful (spec §9).
func newCPUAllocator() worker.NewCPUFunc {
	next := 1
	max := runtime.NumCPU()
	return func(numaNode int) (int, error) {
		if next >= max {
			return 0, fmt.Errorf("no spare CPU available (host has %d)", max)
		}
		cpuID := next
		next++
		return cpuID, nil
	}
}

func cpuTopology(cpuID int) (numaNode int, ok bool) {
	return 0, true
}

// newDaemon wires the Interface Registry, Worker Registry, Port and
// VLAN subsystems, and next-hop table together, matching grouted's
// module-init order (spec §9): register interface types before any
// port or VLAN can be created.
func newDaemon(backend string, nhCapacity uint32) (*daemon, error) {
	var facade ddf.Facade
	switch backend {
	case "simnic":
		facade = simnic.New()
	case "netlinkdev":
		facade = netlinkdev.New()
	default:
		return nil, fmt.Errorf("unknown backend %q (want simnic or netlinkdev)", backend)
	}

	workers := worker.NewRegistry(newCPUAllocator())
	ifaces := iface.NewRegistry()

	ports := port.New(facade, workers, ifaces, cpuTopology)
	ifaces.RegisterType(ports.Type())

	vlans := vlan.New(facade, ifaces)
	ifaces.RegisterType(vlans.Type())

	nh := nexthop.NewTable(nhCapacity, monotonicTicks, ticksPerSecond, nil, func(ifaceID uint16) bool {
		_, ok := ifaces.FromID(ifaceID)
		return ok
	})

	return &daemon{
		facade:   facade,
		workers:  workers,
		ifaces:   ifaces,
		ports:    ports,
		vlans:    vlans,
		nexthops: nh,
	}, nil
}

// bringUp probes and configures every device and VLAN named in cfg,
// in order, stopping at the first failure — an operator-supplied
// config is expected to be valid, not defended against.
func (d *daemon) bringUp(cfg *config.Config) error {
	for _, p := range cfg.Ports {
		if f, ok := d.facade.(*simnic.Facade); ok {
			f.AddDevice(p.Devargs, 0)
		}
		apiInfo := &port.APIInfo{
			Devargs: p.Devargs,
			NRxq:    p.NRxq,
			NTxq:    p.NTxq,
			RxqSize: p.RxqSize,
		}
		var flags iface.Flags
		if p.Up {
			flags = iface.FlagUp
		}
		ifc, err := d.ifaces.Create(iface.TypePort, iface.CommonAttrs{Flags: flags, MTU: p.MTU}, apiInfo)
		if err != nil {
			return fmt.Errorf("bring up port %s: %w", p.Devargs, err)
		}
		grlog.WithPort(ifc.ID).Infof("port %s configured at startup", p.Devargs)
	}

	for _, v := range cfg.VLANs {
		parent, ok := d.ifaces.FromID(findPortByDevargs(d, v.ParentDevargs))
		if !ok {
			return fmt.Errorf("bring up vlan %d: parent %s not found", v.VLANID, v.ParentDevargs)
		}
		apiInfo := &vlan.APIInfo{ParentID: parent.ID, VLANID: v.VLANID}
		ifc, err := d.ifaces.Create(iface.TypeVLAN, iface.CommonAttrs{MTU: v.MTU}, apiInfo)
		if err != nil {
			return fmt.Errorf("bring up vlan %d on %s: %w", v.VLANID, v.ParentDevargs, err)
		}
		grlog.WithIface(ifc.ID).Infof("vlan %d on %s configured at startup", v.VLANID, v.ParentDevargs)
	}
	return nil
}

// findPortByDevargs walks the registered ports looking for one whose
// devargs match. Returns 0 (an id that Create never hands out, since
// ids start at 1) if no port matches.
func findPortByDevargs(d *daemon, devargs string) uint16 {
	var cursor uint16
	for {
		ifc := d.ifaces.Next(iface.TypePort, cursor)
		if ifc == nil {
			return 0
		}
		cursor = ifc.ID
		if p, ok := ifc.Info.(*port.Info); ok && p.Devargs == devargs {
			return ifc.ID
		}
	}
}

func runDaemon(cfg *config.Config, backend string) error {
	d, err := newDaemon(backend, cfg.NextHopCapacity)
	if err != nil {
		return err
	}
	if err := d.bringUp(cfg); err != nil {
		return err
	}

	registry := api.NewRegistry()
	d.registerHandlers(registry)

	srv, err := api.NewServer(cfg.SocketPath, registry)
	if err != nil {
		return fmt.Errorf("start API server: %w", err)
	}
	grlog.WithField("socket", cfg.SocketPath).Info("grouted listening")

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if isClosedListenerErr(err) {
			return nil
		}
		return fmt.Errorf("API server: %w", err)
	case s := <-sig:
		grlog.WithField("signal", s.String()).Info("shutting down")
		return srv.Close()
	}
}

func isClosedListenerErr(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(*net.OpError); ok {
		return ne.Err.Error() == "use of closed network connection"
	}
	return false
}
