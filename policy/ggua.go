// This file implements the G-GUA (Global Generalized Utility
// Accrual) feasibility DAG helpers: a precedence graph built from
// mutex-ownership edges, used to decide a feasible global schedule when
// tasks' resource dependencies would otherwise make priority alone an
// unreliable ordering. Grounded on
// original_source/kernel/chronos_global.c.
package policy

import (
	"github.com/vtrts/chronos/chronoslog"
	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/ivd"
	"github.com/vtrts/chronos/task"
)

// InsertLink records that child depends on parent (parent must
// release whatever child is waiting on before child can proceed),
// propagating child's aggregate left-time and max-utility up parent's
// ancestor chain so an ancestor's global IVD accounts for every
// descendant's remaining work.
func InsertLink(parent, child *task.Task) {
	if parent == nil || child == nil || parent == child {
		return
	}
	for _, n := range parent.Graph.Neighbors {
		if n == child {
			return
		}
	}
	parent.Graph.Neighbors = append(parent.Graph.Neighbors, child)
	parent.Graph.OutDegree++
	child.Graph.InDegree++
	child.Graph.Parent = parent

	for cur := parent; cur != nil; cur = cur.Graph.Parent {
		cur.Graph.AggLeft = chronostime.Add(cur.Graph.AggLeft, child.Graph.AggLeft)
		cur.Graph.AggUtil += child.Graph.AggUtil
	}
}

// RemoveLink removes p's edge to its parent, if any, reversing the
// aggregate propagation InsertLink performed.
func RemoveLink(p *task.Task) {
	parent := p.Graph.Parent
	if parent == nil {
		return
	}
	for i, n := range parent.Graph.Neighbors {
		if n == p {
			parent.Graph.Neighbors = append(parent.Graph.Neighbors[:i], parent.Graph.Neighbors[i+1:]...)
			break
		}
	}
	parent.Graph.OutDegree--
	p.Graph.InDegree--
	p.Graph.Parent = nil

	for cur := parent; cur != nil; cur = cur.Graph.Parent {
		cur.Graph.AggLeft = chronostime.Sub(cur.Graph.AggLeft, p.Graph.AggLeft)
		cur.Graph.AggUtil -= p.Graph.AggUtil
	}
}

// FindZeroIndegree scans tasks for those with no unresolved
// dependencies (the roots a global scheduler may safely run next),
// links them into a dependency chain (mirroring insert_deplist),
// computes each root's global IVD from its aggregated subtree, and
// assigns a temp-deadline fallback for the EDF-PIP degraded mode.
//
// A task that never reaches zero in-degree is part of an ownership
// cycle; FindZeroIndegree breaks any such cycle by aborting its
// worst-IVD member, the same recovery AbortDeadlock performs for local
// priority-inheritance deadlocks.
func FindZeroIndegree(tasks []*task.Task, plane ivd.AbortSink, counters ivd.Counters, log chronoslog.Logger) []*task.Task {
	var zero []*task.Task
	for _, t := range tasks {
		if t.Graph.InDegree == 0 {
			zero = append(zero, t)
		}
	}

	var tail *task.Task
	for _, t := range zero {
		if tail != nil {
			tail.Graph.DepChain = t
		}
		tail = t
	}
	if tail != nil {
		tail.Graph.DepChain = nil
	}

	for _, t := range zero {
		t.GlobalIVD = ivd.Compute(t.Graph.AggLeft, t.Graph.AggUtil)
		t.TempDeadline = earliestSubtreeDeadline(t, map[*task.Task]bool{})
	}

	zeroSet := make(map[*task.Task]bool, len(zero))
	for _, t := range zero {
		zeroSet[t] = true
	}
	for _, t := range tasks {
		if t.Graph.InDegree > 0 && !zeroSet[t] {
			if ivd.MarkGlobalDeadlocks(t) {
				ivd.AbortDeadlock(t, plane, counters, log)
			}
		}
	}
	return zero
}

func earliestSubtreeDeadline(t *task.Task, visited map[*task.Task]bool) chronostime.Timespec {
	if visited[t] {
		return t.EffectiveDeadline()
	}
	visited[t] = true
	best := t.EffectiveDeadline()
	for _, n := range t.Graph.Neighbors {
		if nd := earliestSubtreeDeadline(n, visited); chronostime.Before(nd, best) {
			best = nd
		}
	}
	return best
}

// FindLeastLocalPUD walks the parent chain from head up to (and
// including) pivot, returning the task with the worst (highest) local
// IVD encountered — the cheapest member of that chain to sacrifice if
// it turns out to be a cycle.
func FindLeastLocalPUD(head, pivot *task.Task) *task.Task {
	var worst *task.Task
	for cur := head; cur != nil; cur = cur.Graph.Parent {
		if worst == nil || cur.LocalIVD > worst.LocalIVD {
			worst = cur
		}
		if cur == pivot {
			break
		}
	}
	return worst
}

// FindLeastPIP recursively walks t's neighbor list (its dependents in
// the feasibility DAG) looking for the earliest (effective) deadline,
// starting the comparison from least.
func FindLeastPIP(t *task.Task, least *task.Task) *task.Task {
	if least == nil || chronostime.Before(t.EffectiveDeadline(), least.EffectiveDeadline()) {
		least = t
	}
	for _, n := range t.Graph.Neighbors {
		least = FindLeastPIP(n, least)
	}
	return least
}

// CPUState tracks one CPU's current global-domain load, replacing the
// original's intrusive head/tail list-of-tasks-on-this-cpu with a plain
// slice; InsertCPUTask/UpdateCPUExecTimes keep ExecTimeNanos consistent
// with it so FindProcessor doesn't need to re-sum the slice each call.
type CPUState struct {
	ExecTimeNanos int64
	Tasks         []*task.Task
	BestDeadline  *task.Task
	BestIVD       *task.Task
	LastIVD       *task.Task
}

// InsertCPUTask assigns t to state, bumping its aggregate execution
// time.
func InsertCPUTask(state *CPUState, t *task.Task) {
	state.Tasks = append(state.Tasks, t)
	state.ExecTimeNanos += chronostime.Nanos(t.Left)
}

// UpdateCPUExecTimes adjusts state's aggregate execution time by t.Left,
// added when a task is assigned and subtracted when removed.
func UpdateCPUExecTimes(state *CPUState, t *task.Task, added bool) {
	delta := chronostime.Nanos(t.Left)
	if added {
		state.ExecTimeNanos += delta
	} else {
		state.ExecTimeNanos -= delta
	}
}

// FindProcessor returns the index of the least-loaded CPU among states.
func FindProcessor(states []*CPUState) int {
	best := -1
	for i, s := range states {
		if best == -1 || s.ExecTimeNanos < states[best].ExecTimeNanos {
			best = i
		}
	}
	return best
}

// FindProcessorEx is FindProcessor restricted to CPUs marked eligible
// in mask (mask[i] true means CPU i may be chosen), mirroring the
// original's bitmask-restricted variant used by G-GUA to avoid
// assigning a task to a CPU it has no affinity for.
func FindProcessorEx(states []*CPUState, mask []bool) int {
	best := -1
	for i, s := range states {
		if i >= len(mask) || !mask[i] {
			continue
		}
		if best == -1 || s.ExecTimeNanos < states[best].ExecTimeNanos {
			best = i
		}
	}
	return best
}
