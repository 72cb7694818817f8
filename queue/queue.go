// Package queue maintains sorted task lists keyed by one of the
// scheduling metrics (deadline, period, local/global IVD, temp
// deadline). The original kernel module kept a task simultaneously on
// up to six intrusive linked lists (task_list[LOCAL_LIST..SCHED_LIST4])
// and quicksorted them in place; this package instead maintains plain
// slices per list role and keeps them ordered with
// golang.org/x/exp/slices, which is both simpler and cheaper to reason
// about without pointer-stable intrusive nodes.
package queue

import (
	"golang.org/x/exp/slices"

	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/task"
)

// Less compares two tasks by key, returning true if a sorts before b.
func Less(key task.SortKey, a, b *task.Task) bool {
	switch key {
	case task.SortArrival:
		return a.Seq < b.Seq
	case task.SortDeadline:
		return chronostime.Before(a.EffectiveDeadline(), b.EffectiveDeadline())
	case task.SortPeriod:
		return chronostime.Before(a.Period, b.Period)
	case task.SortLocalIVD:
		return a.LocalIVD < b.LocalIVD
	case task.SortGlobalIVD:
		return a.GlobalIVD < b.GlobalIVD
	case task.SortTempDeadline:
		return chronostime.Before(a.TempDeadline, b.TempDeadline)
	default:
		return false
	}
}

// List is a slice of tasks kept sorted by a single key.
type List struct {
	Key   task.SortKey
	tasks []*task.Task
}

// NewList returns an empty list sorted by key.
func NewList(key task.SortKey) *List { return &List{Key: key} }

// Len reports the number of tasks on the list.
func (l *List) Len() int { return len(l.tasks) }

// Tasks returns the list's tasks in sorted order. The returned slice
// must not be mutated by the caller.
func (l *List) Tasks() []*task.Task { return l.tasks }

// Insert adds t to the list, keeping it sorted by l.Key.
func (l *List) Insert(t *task.Task) {
	idx, _ := slices.BinarySearchFunc(l.tasks, t, func(a, b *task.Task) int {
		if Less(l.Key, a, b) {
			return -1
		}
		if Less(l.Key, b, a) {
			return 1
		}
		return 0
	})
	l.tasks = slices.Insert(l.tasks, idx, t)
}

// Remove removes t from the list if present, reporting whether it was
// found.
func (l *List) Remove(t *task.Task) bool {
	idx := slices.Index(l.tasks, t)
	if idx < 0 {
		return false
	}
	l.tasks = slices.Delete(l.tasks, idx, idx+1)
	return true
}

// Resort re-sorts the list in place, for use after in-place metric
// updates (e.g. after WCET accounting changes Left for every task).
func (l *List) Resort() {
	slices.SortFunc(l.tasks, func(a, b *task.Task) int {
		if Less(l.Key, a, b) {
			return -1
		}
		if Less(l.Key, b, a) {
			return 1
		}
		return 0
	})
}

// Front returns the first (best-ranked) task on the list, or nil if
// empty.
func (l *List) Front() *task.Task {
	if len(l.tasks) == 0 {
		return nil
	}
	return l.tasks[0]
}

// Trim removes and returns every task beyond the first n, mirroring the
// original's trim_list (used to cap a candidate list to the number of
// free CPUs before mapping).
func (l *List) Trim(n int) []*task.Task {
	if n >= len(l.tasks) {
		return nil
	}
	trimmed := append([]*task.Task(nil), l.tasks[n:]...)
	l.tasks = l.tasks[:n]
	return trimmed
}

// Copy returns a shallow copy of the list (same tasks, independent
// slice), mirroring the original's copy_list used before destructively
// trimming a working list.
func (l *List) Copy() *List {
	return &List{Key: l.Key, tasks: append([]*task.Task(nil), l.tasks...)}
}

// IsFeasible reports whether every task's remaining time budget fits
// before its deadline, the same check list_is_feasible performs before
// trusting a candidate assignment.
func IsFeasible(tasks []*task.Task, now chronostime.Timespec) bool {
	for _, t := range tasks {
		finish := chronostime.Add(now, t.Left)
		if chronostime.Before(t.EffectiveDeadline(), finish) {
			return false
		}
	}
	return true
}
