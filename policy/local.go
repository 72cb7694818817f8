// Package policy implements ChronOS's pluggable local and global
// scheduling policies, grounded one-for-one on
// original_source/chronos/{rma,rma_icpp,rma_ocpp,hvdf,fifo_ra,gfifo,
// grma}.c, plus the G-GUA feasibility DAG helpers from
// original_source/kernel/chronos_global.c.
package policy

import (
	"math"

	"github.com/vtrts/chronos/chronoslog"
	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/ivd"
	"github.com/vtrts/chronos/queue"
	"github.com/vtrts/chronos/task"
)

// Local is a per-CPU scheduling policy: given the set of tasks ready to
// run on one CPU, pick the one that should run next.
type Local interface {
	ID() task.PolicyID
	Name() string
	// SortKey names the metric the caller should keep the ready list
	// sorted by before calling Schedule; several policies rely on this
	// instead of scanning.
	SortKey() task.SortKey
	Schedule(ready *queue.List, now chronostime.Timespec) *task.Task
}

// sortedFront is the common case: keep the list sorted by key and take
// the best-ranked task, used by every policy whose priority order never
// needs recomputing per-call.
func sortedFront(ready *queue.List) *task.Task {
	ready.Resort()
	return ready.Front()
}

// FIFO runs tasks in arrival order.
type FIFO struct{}

func (FIFO) ID() task.PolicyID      { return task.PolicyFIFO }
func (FIFO) Name() string           { return "FIFO" }
func (FIFO) SortKey() task.SortKey  { return task.SortArrival }
func (FIFO) Schedule(ready *queue.List, _ chronostime.Timespec) *task.Task {
	return sortedFront(ready)
}

// RMA (Rate Monotonic Assignment) prioritizes the task with the
// shortest period.
type RMA struct{}

func (RMA) ID() task.PolicyID     { return task.PolicyRMA }
func (RMA) Name() string          { return "RMA" }
func (RMA) SortKey() task.SortKey { return task.SortPeriod }
func (RMA) Schedule(ready *queue.List, _ chronostime.Timespec) *task.Task {
	return sortedFront(ready)
}

// EDF (Earliest Deadline First) prioritizes the task with the least
// slack — deadline minus the time it would take to finish its
// remaining work if started right now. Slack is recomputed at
// selection time rather than kept continuously sorted, because the
// ready list is not re-sorted every time WCET accounting updates a
// task's Left.
type EDF struct{}

func (EDF) ID() task.PolicyID     { return task.PolicyEDF }
func (EDF) Name() string          { return "EDF" }
func (EDF) SortKey() task.SortKey { return task.SortNone }

func (EDF) Schedule(ready *queue.List, now chronostime.Timespec) *task.Task {
	var best *task.Task
	var bestSlack chronostime.Timespec
	for _, t := range ready.Tasks() {
		finish := chronostime.Add(now, t.Left)
		slack := chronostime.Sub(t.EffectiveDeadline(), finish)
		if best == nil || chronostime.Before(slack, bestSlack) {
			best = t
			bestSlack = slack
		}
	}
	return best
}

// HVDF (Highest Value Density First) prioritizes the task with the
// lowest inverse value density — the most time-critical use of its
// remaining execution budget against its maximum utility.
type HVDF struct {
	Plane    ivd.AbortSink
	Counters ivd.Counters
	Logger   chronoslog.Logger
}

func (HVDF) ID() task.PolicyID     { return task.PolicyHVDF }
func (HVDF) Name() string          { return "HVDF" }
func (HVDF) SortKey() task.SortKey { return task.SortNone }

func (h HVDF) Schedule(ready *queue.List, _ chronostime.Timespec) *task.Task {
	var best *task.Task
	var bestIVD int64
	for _, t := range ready.Tasks() {
		if t.HasFlag(task.FlagAborted) {
			return t
		}
		v := ivd.LIVD(t, false, h.Plane, h.Counters, h.Logger)
		switch v {
		case -1, -2, math.MaxInt64:
			// -1: just aborted or newly deadlocked; -2: reserved sentinel;
			// MaxInt64: no time pressure at all. All three are returned
			// immediately rather than weighed against the running best.
			return t
		}
		if best == nil || v < bestIVD {
			best = t
			bestIVD = v
		}
	}
	return best
}

// FIFORA (FIFO, Resource-Aware) runs tasks in arrival order, skipping
// any task that is blocked waiting on a mutex with an owner: it returns
// the first task in arrival order that is not blocked, or nil if every
// task is. It does not walk the priority-inheritance chain or boost the
// mutex owner.
type FIFORA struct{}

func (FIFORA) ID() task.PolicyID     { return task.PolicyFIFORA }
func (FIFORA) Name() string          { return "FIFO_RA" }
func (FIFORA) SortKey() task.SortKey { return task.SortArrival }

func (FIFORA) Schedule(ready *queue.List, _ chronostime.Timespec) *task.Task {
	ready.Resort()
	for _, t := range ready.Tasks() {
		if t.RequestedResource == nil || t.RequestedResource.Owner == nil {
			return t
		}
	}
	return nil
}

// RMAICPP is Rate Monotonic Assignment with the Immediate Ceiling
// Priority Protocol: a task's effective priority while holding a mutex
// is raised to the period-ceiling of that mutex (the shortest period
// ever seen among its requesters), so it can never be preempted by a
// task the ceiling already accounts for. This is the richer
// period-floor variant, which accounts for a holder's worst-case
// future contender rather than only its own period, and not the
// simpler of the two variants found in the original source.
type RMAICPP struct{}

func (RMAICPP) ID() task.PolicyID     { return task.PolicyRMAICPP }
func (RMAICPP) Name() string          { return "RMA-ICPP" }
func (RMAICPP) SortKey() task.SortKey { return task.SortNone }

func (RMAICPP) Schedule(ready *queue.List, _ chronostime.Timespec) *task.Task {
	var best *task.Task
	var bestPeriod chronostime.Timespec
	for _, t := range ready.Tasks() {
		p := t.EffectivePeriod()
		if best == nil || chronostime.Before(p, bestPeriod) {
			best = t
			bestPeriod = p
		}
	}
	return best
}

// RMAOCPP is Rate Monotonic Assignment with the Original Ceiling
// Priority Protocol: like RMAICPP, but the ceiling only applies once a
// higher-priority task is actually blocked on the resource (i.e. the
// protocol only boosts reactively, via the PI walk, rather than raising
// a holder's priority the instant it acquires the lock).
type RMAOCPP struct{}

func (RMAOCPP) ID() task.PolicyID     { return task.PolicyRMAOCPP }
func (RMAOCPP) Name() string          { return "RMA-OCPP" }
func (RMAOCPP) SortKey() task.SortKey { return task.SortPeriod }

func (RMAOCPP) Schedule(ready *queue.List, _ chronostime.Timespec) *task.Task {
	ready.Resort()
	front := ready.Front()
	if front == nil {
		return front
	}
	// Only boost if front is genuinely blocked waiting on something
	// (reactive ceiling); an unblocked front task keeps plain RMA order.
	if front.RequestedResource == nil {
		return front
	}
	boosted := ivd.GetPITask(front)
	if boosted == nil {
		return front
	}
	return boosted
}
