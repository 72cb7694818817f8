package policy

import (
	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/queue"
	"github.com/vtrts/chronos/task"
)

// Global is a cross-CPU scheduling policy: given every ready task in
// the global scheduling domain, pick the one that should run next on
// the asking CPU.
type Global interface {
	ID() task.PolicyID
	Name() string
	SortKey() task.SortKey
	Schedule(ready *queue.List, now chronostime.Timespec, cpu int) *task.Task
}

// GFIFO is FIFO applied across the whole global domain: the first task
// in arrival order that may actually run on the asking CPU (already
// assigned there, or not assigned anywhere yet), removed from ready
// once chosen, mirroring sched_gfifo's task_pullable scan plus
// _remove_task_global.
type GFIFO struct{}

func (GFIFO) ID() task.PolicyID     { return task.PolicyGFIFO }
func (GFIFO) Name() string          { return "GFIFO" }
func (GFIFO) SortKey() task.SortKey { return task.SortArrival }

func (GFIFO) Schedule(ready *queue.List, _ chronostime.Timespec, cpu int) *task.Task {
	ready.Resort()
	for _, t := range ready.Tasks() {
		if t.CPU == cpu || t.SegJustStarted() {
			ready.Remove(t)
			return t
		}
	}
	return nil
}

// GRMA is RMA applied across the whole global domain: shortest period
// wins regardless of which CPU is asking, mirroring sched_grma's
// period-sorted pick (it never filters by cpu or removes from the
// list itself — its stop-the-world architecture handles both).
type GRMA struct{}

func (GRMA) ID() task.PolicyID     { return task.PolicyGRMA }
func (GRMA) Name() string          { return "GRMA" }
func (GRMA) SortKey() task.SortKey { return task.SortPeriod }

func (GRMA) Schedule(ready *queue.List, _ chronostime.Timespec, _ int) *task.Task {
	return sortedFront(ready)
}
