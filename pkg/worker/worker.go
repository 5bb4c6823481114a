// Package worker implements the Worker Registry: the process-wide
// ordered set of datapath worker threads, each pinned to a CPU, each
// owning two ordered lists of queue mappings (rxqs, txqs).
//
// The registry is mutated only by the control thread; workers only
// read their own queue vectors. Two publication primitives make that
// safe without locks (spec §5):
//   - QueueMap.Enabled is an atomic.Bool: the unplug/plug protocol
//     toggles it with Store/Load, giving the release/acquire ordering
//     the spec requires between "stop touching this queue" and
//     "reconfiguration in progress".
//   - A worker's rxqs/txqs are published via atomic.Pointer swap: the
//     control thread builds a whole new slice and swaps the pointer
//     atomically, so a worker never observes a half-updated vector.
package worker

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/vjardin/grout/pkg/grerr"
	"github.com/vjardin/grout/pkg/grlog"
)

// QueueMap binds a worker to one device queue. Enabled is toggled by
// the port subsystem's unplug/plug protocol around reconfiguration.
type QueueMap struct {
	PortID  uint16
	QueueID uint16
	Enabled atomic.Bool
}

// Worker is one datapath thread pinned to CPUID, polling its rxqs and
// transmitting on its txqs.
type Worker struct {
	CPUID int
	rxqs  atomic.Pointer[[]*QueueMap]
	txqs  atomic.Pointer[[]*QueueMap]
}

// RxQueues returns the worker's current receive queue vector. Safe to
// call concurrently with control-thread mutation.
func (w *Worker) RxQueues() []*QueueMap {
	p := w.rxqs.Load()
	if p == nil {
		return nil
	}
	return *p
}

// TxQueues returns the worker's current transmit queue vector.
func (w *Worker) TxQueues() []*QueueMap {
	p := w.txqs.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (w *Worker) setRxQueues(qs []*QueueMap) { w.rxqs.Store(&qs) }
func (w *Worker) setTxQueues(qs []*QueueMap) { w.txqs.Store(&qs) }

// NewCPUFunc picks a CPU on the given NUMA node (or any CPU if node is
// unconstrained, i.e. negative) to host a new worker. Worker creation —
// spawning the pinned OS thread — is a collaborator concern external to
// this package (spec §4.4); the registry only owns the bookkeeping list
// and per-worker queue vectors.
type NewCPUFunc func(numaNode int) (cpuID int, err error)

// Registry is the process-wide, insertion-ordered set of workers. The
// insertion order is load-bearing: it defines txq numbering (spec §4.2).
type Registry struct {
	workers []*Worker
	byCPU   map[int]*Worker
	newCPU  NewCPUFunc
}

// NewRegistry returns an empty registry. newCPU is the collaborator that
// picks a CPU for a freshly created worker.
func NewRegistry(newCPU NewCPUFunc) *Registry {
	return &Registry{byCPU: make(map[int]*Worker), newCPU: newCPU}
}

// Count returns the number of live workers.
func (r *Registry) Count() int { return len(r.workers) }

// Workers returns the live workers in insertion (registration) order.
// Callers must not mutate the returned slice.
func (r *Registry) Workers() []*Worker { return r.workers }

// ByCPU looks up a worker by CPU id.
func (r *Registry) ByCPU(cpuID int) (*Worker, bool) {
	w, ok := r.byCPU[cpuID]
	return w, ok
}

// EnsureDefault returns success if a worker already exists on numaNode
// (or numaNode is unconstrained, i.e. negative), otherwise picks a CPU
// via newCPU and creates one.
func (r *Registry) EnsureDefault(numaNode int, cpuOnNode func(cpuID int) (int, bool)) (*Worker, error) {
	if numaNode < 0 && len(r.workers) > 0 {
		return r.workers[0], nil
	}
	for _, w := range r.workers {
		if node, ok := cpuOnNode(w.CPUID); ok && (numaNode < 0 || node == numaNode) {
			return w, nil
		}
	}
	cpuID, err := r.newCPU(numaNode)
	if err != nil {
		return nil, grerr.Newf(unix.ENOMEM, "worker.ensure_default", "", "no CPU available on numa node %d: %v", numaNode, err)
	}
	w := &Worker{CPUID: cpuID}
	w.setRxQueues(nil)
	w.setTxQueues(nil)
	r.workers = append(r.workers, w)
	r.byCPU[cpuID] = w
	grlog.WithWorker(cpuID).Info("worker created")
	return w, nil
}

// Destroy removes the worker pinned to cpuID and releases its queue
// vectors.
func (r *Registry) Destroy(cpuID int) error {
	w, ok := r.byCPU[cpuID]
	if !ok {
		return grerr.New(unix.ENODEV, "worker.destroy", "")
	}
	for i, ww := range r.workers {
		if ww == w {
			r.workers = append(r.workers[:i], r.workers[i+1:]...)
			break
		}
	}
	delete(r.byCPU, cpuID)
	grlog.WithWorker(cpuID).Info("worker destroyed")
	return nil
}

// SetEnabled toggles enabled atomically on every queue map referencing
// portID, across both rxqs and txqs of every worker. This implements
// the unplug (enabled=false) and plug (enabled=true) halves of the port
// reconfiguration protocol (spec §4.2, §5).
func (r *Registry) SetEnabled(portID uint16, enabled bool) {
	for _, w := range r.workers {
		for _, q := range w.RxQueues() {
			if q.PortID == portID {
				q.Enabled.Store(enabled)
			}
		}
		for _, q := range w.TxQueues() {
			if q.PortID == portID {
				q.Enabled.Store(enabled)
			}
		}
	}
}

// AssignTxQueue deletes any existing txq entry for portID on w (to
// guarantee exactly one) and appends a fresh one numbered queueID.
func (w *Worker) AssignTxQueue(portID, queueID uint16) {
	cur := w.TxQueues()
	next := make([]*QueueMap, 0, len(cur)+1)
	for _, q := range cur {
		if q.PortID != portID {
			next = append(next, q)
		}
	}
	qm := &QueueMap{PortID: portID, QueueID: queueID}
	qm.Enabled.Store(false)
	next = append(next, qm)
	w.setTxQueues(next)
}

// PrunedRxQueueIDs returns the set of rxq ids already assigned to w for
// portID that are still < nRxq, dropping any stale entries whose queue
// id is out of range. This implements the
// "drop worker rxq entries whose queue_id >= n_rxq" half of
// queue-assignment (spec §4.2).
func (w *Worker) PrunedRxQueueIDs(portID uint16, nRxq uint16) (assigned map[uint16]bool) {
	assigned = make(map[uint16]bool)
	cur := w.RxQueues()
	next := make([]*QueueMap, 0, len(cur))
	for _, q := range cur {
		if q.PortID != portID {
			next = append(next, q)
			continue
		}
		if q.QueueID < nRxq {
			assigned[q.QueueID] = true
			next = append(next, q)
		}
		// else: extraneous rxq, dropped.
	}
	w.setRxQueues(next)
	return assigned
}

// AppendRxQueue appends a fresh, disabled rxq entry for portID/queueID
// to w's rx vector.
func (w *Worker) AppendRxQueue(portID, queueID uint16) {
	cur := w.RxQueues()
	next := make([]*QueueMap, len(cur), len(cur)+1)
	copy(next, cur)
	qm := &QueueMap{PortID: portID, QueueID: queueID}
	qm.Enabled.Store(false)
	next = append(next, qm)
	w.setRxQueues(next)
}

// RemoveRxQueuesForPort deletes every rxq entry referencing portID from
// w, returning the number of entries remaining afterward.
func (w *Worker) RemoveRxQueuesForPort(portID uint16) int {
	cur := w.RxQueues()
	next := make([]*QueueMap, 0, len(cur))
	for _, q := range cur {
		if q.PortID != portID {
			next = append(next, q)
		}
	}
	w.setRxQueues(next)
	return len(next)
}

// RemoveTxQueueForPort deletes w's txq entry for portID (there is at
// most one, per AssignTxQueue's replace-not-append guarantee), returning
// the number of txq entries remaining afterward.
func (w *Worker) RemoveTxQueueForPort(portID uint16) int {
	cur := w.TxQueues()
	next := make([]*QueueMap, 0, len(cur))
	for _, q := range cur {
		if q.PortID != portID {
			next = append(next, q)
		}
	}
	w.setTxQueues(next)
	return len(next)
}
