// Package ivd implements inverse value density (the core time-utility
// priority metric), priority inheritance, and deadlock marking/recovery
// — the functions original_source/kernel/chronos_util.c groups together
// because every local and global policy needs all three.
package ivd

import (
	"math"

	"github.com/vtrts/chronos/chronoslog"
	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/task"
)

// AbortSink is the minimal surface ivd needs from the cooperative abort
// plane: signal a PID's abort byte. Kept as an interface (rather than an
// import of package abortplane) so ivd has no dependency on how the
// abort byte is actually stored.
type AbortSink interface {
	Set(pid int) error
}

// Counters is the minimal surface ivd needs from chronosstats.
type Counters interface {
	IncAbortCount()
}

// Compute is the bare inverse-value-density formula shared by local and
// global IVD: left-time per unit of max-utility, with LONG_MAX standing
// in for "no time pressure" (left == 0) and a floor of 1 so a nonzero
// result never rounds down to "no pressure".
func Compute(left chronostime.Timespec, util int64) int64 {
	if util <= 0 {
		return math.MaxInt64
	}
	leftNanos := chronostime.Nanos(left)
	if leftNanos == 0 {
		return math.MaxInt64
	}
	v := leftNanos / util
	if v == 0 {
		return 1
	}
	return v
}

// LIVD computes a task's local inverse value density. If calcDep is
// true, it accumulates left-time and max-utility across the task's
// dependency chain (graph.DepChain), matching the original's
// resource-holder aggregation used while resolving priority inheritance.
// A task whose LocalIVD is already pinned to -1 (aborted by
// HandleTaskFailure) is sticky: LIVD returns -1 without recomputing,
// so it keeps sorting out of every candidate list until reaped. A task
// already marked deadlocked is resolved via AbortDeadlock instead of
// being assigned an ordinary IVD value, and LIVD returns -1 for it too.
func LIVD(t *task.Task, calcDep bool, plane AbortSink, counters Counters, log chronoslog.Logger) int64 {
	if t.LocalIVD == -1 {
		return -1
	}
	if t.HasFlag(task.FlagDeadlocked) {
		AbortDeadlock(t, plane, counters, log)
		return -1
	}

	left := t.Left
	util := t.EffectiveMaxUtil()
	if calcDep {
		for cur := t.Graph.DepChain; cur != nil; cur = cur.Graph.DepChain {
			left = chronostime.Add(left, cur.Left)
			util += cur.EffectiveMaxUtil()
		}
	}

	t.LocalIVD = Compute(left, util)
	return t.LocalIVD
}

// CalcLeft returns the execution-time budget remaining for t's current
// job, given the current time. It never returns a negative duration.
func CalcLeft(t *task.Task, now chronostime.Timespec) chronostime.Timespec {
	elapsed := chronostime.Sub(now, t.SegStart)
	left := chronostime.Sub(t.ExecTime, elapsed)
	if left.Sec < 0 {
		return chronostime.Zero
	}
	return left
}

// UpdateLeft recomputes and stores t.Left for the current time.
func UpdateLeft(t *task.Task, now chronostime.Timespec) {
	t.Left = CalcLeft(t, now)
}

// CheckTaskFailure reports whether t has missed its (effective)
// deadline as of now.
func CheckTaskFailure(t *task.Task, now chronostime.Timespec) bool {
	return !chronostime.Before(now, t.EffectiveDeadline())
}

// HandleTaskFailure responds to a deadline miss. A task with an
// installed user abort handler is marked FlagAborted and left running
// under its handler's deadline and max-utility, which
// Task.EffectiveDeadline/EffectiveMaxUtil return once FlagAborted is
// set; its ExecTime and Left are not replaced by the handler's
// exec-time. Everything else is aborted outright with local_ivd pinned to -1 so it
// sorts out of every candidate list until it is reaped.
func HandleTaskFailure(t *task.Task, plane AbortSink, counters Counters, log chronoslog.Logger) error {
	if t.HasFlag(task.FlagHUA) {
		t.SetFlag(task.FlagAborted)
		if log != nil {
			log.Info("task failure handled cooperatively", "pid", t.PID)
		}
		return nil
	}
	t.LocalIVD = -1
	return AbortThread(t, plane, counters, log)
}

// AbortThread marks t aborted, signals its abort-plane byte, releases
// any resource it was waiting to acquire, and counts the abort.
func AbortThread(t *task.Task, plane AbortSink, counters Counters, log chronoslog.Logger) error {
	if plane != nil {
		if err := plane.Set(t.PID); err != nil {
			return err
		}
	}
	t.SetFlag(task.FlagAborted)
	t.RequestedResource = nil
	if counters != nil {
		counters.IncAbortCount()
	}
	if log != nil {
		log.Warn("task aborted", "pid", t.PID)
	}
	return nil
}

// GetPITask walks t's priority-inheritance chain — the chain of mutex
// owners t transitively waits behind — and returns the task at the end
// of the chain, the one whose priority should be boosted on t's behalf.
// It returns nil if the chain cycles back on itself (a deadlock the
// caller should detect separately via MarkDeadlocks).
func GetPITask(t *task.Task) *task.Task {
	seen := map[*task.Task]bool{t: true}
	cur := t
	for cur.RequestedResource != nil && cur.RequestedResource.Owner != nil {
		owner := cur.RequestedResource.Owner
		if seen[owner] {
			return nil
		}
		seen[owner] = true
		cur = owner
	}
	return cur
}

// MarkDeadlocks walks start's priority-inheritance chain looking for a
// cycle. If one is found, every task on the cyclic portion of the chain
// is marked FlagDeadlocked and MarkDeadlocks returns true.
//
// The original split this into mark_local_deadlocks/mark_global_deadlocks
// to avoid walking a full ownership list when a cheaper local-only scan
// sufficed; this implementation uses a hash-set cycle check that costs
// the same either way, so both call straight into this one walk.
func MarkDeadlocks(start *task.Task) bool {
	var path []*task.Task
	seen := map[*task.Task]int{}
	cur := start
	for cur != nil {
		if idx, ok := seen[cur]; ok {
			for _, c := range path[idx:] {
				c.SetFlag(task.FlagDeadlocked)
			}
			return true
		}
		seen[cur] = len(path)
		path = append(path, cur)
		if cur.RequestedResource == nil {
			return false
		}
		cur = cur.RequestedResource.Owner
	}
	return false
}

// MarkLocalDeadlocks is an alias for MarkDeadlocks, kept distinct from
// MarkGlobalDeadlocks so callers document which scheduling context
// triggered the check.
func MarkLocalDeadlocks(start *task.Task) bool { return MarkDeadlocks(start) }

// MarkGlobalDeadlocks is the global-domain counterpart of
// MarkLocalDeadlocks.
func MarkGlobalDeadlocks(start *task.Task) bool { return MarkDeadlocks(start) }

// AbortDeadlock breaks a deadlock cycle already marked by MarkDeadlocks:
// it walks the cycle starting at start, picks the task with the worst
// (numerically highest) local IVD as the cheapest one to sacrifice,
// clears FlagDeadlocked from every task in the cycle, and aborts the
// chosen task. It returns the aborted task.
func AbortDeadlock(start *task.Task, plane AbortSink, counters Counters, log chronoslog.Logger) *task.Task {
	var path []*task.Task
	var worst *task.Task
	cur := start
	for {
		path = append(path, cur)
		if worst == nil || cur.LocalIVD > worst.LocalIVD {
			worst = cur
		}
		if cur.RequestedResource == nil || cur.RequestedResource.Owner == nil {
			break
		}
		next := cur.RequestedResource.Owner
		if next == start {
			break
		}
		cur = next
	}

	for _, c := range path {
		c.ClearFlag(task.FlagDeadlocked)
	}
	_ = AbortThread(worst, plane, counters, log)
	return worst
}
