// Package task defines the scheduling core's task descriptor: the
// per-task record every local policy, the global domain, and the
// mutex/PI machinery read and mutate.
package task

import "github.com/vtrts/chronos/chronostime"

// Resource is a scheduler-managed mutex as seen from a task waiting on
// it: just enough to drive the priority-inheritance walk, the deadlock
// marker, and the RMA-ICPP period-ceiling protocol, without mutexreg and
// task importing each other. mutexreg.Registry maintains one of these
// per registered mutex.
type Resource struct {
	ID    uint64
	Owner *Task

	// PeriodFloor is the lowest period ever seen among tasks that have
	// requested this resource — the priority ceiling RMA-ICPP raises a
	// holder's effective period to while it holds the lock, so it can't
	// be preempted by a task whose priority it would otherwise invert.
	PeriodFloor chronostime.Timespec
}

// AbortInfo carries the parameters installed by a task's user abort
// handler (HUA). Deadline and MaxUtil are substituted for the task's
// normal values (via EffectiveDeadline/EffectiveMaxUtil) when a deadline
// miss is handled cooperatively instead of by aborting the task
// outright; ExecTime is recorded but not substituted for the task's own
// ExecTime.
type AbortInfo struct {
	Deadline chronostime.Timespec
	ExecTime chronostime.Timespec
	MaxUtil  int64
}

// Graph holds a task's annotations in the G-GUA feasibility precedence
// DAG, built from mutex-ownership edges (see policy.InsertLink).
type Graph struct {
	AggLeft    chronostime.Timespec // sum of left-time over this task and its descendants
	AggUtil    int64                // sum of max-util over this task and its descendants
	InDegree   int
	OutDegree  int
	Neighbors  []*Task // tasks this task blocks (edges out of this task)
	Parent     *Task   // the task this task blocks on, if any
	DepChain   *Task   // next task in the zero-indegree dependency chain being built
}

// Task is the core per-task scheduling descriptor (the rt_info
// equivalent): every field a policy, the global domain, or the PI/
// deadlock machinery needs to make a decision.
type Task struct {
	PID        int
	Flags      Flags
	SchedFlags SchedFlags
	Policy     PolicyID

	// CPU is the logical CPU this task is currently assigned to, or -1
	// if its real-time segment has not yet been mapped to one.
	CPU int

	// Seq is the task's admission order, used by FIFO-family policies.
	Seq uint64

	Deadline     chronostime.Timespec
	TempDeadline chronostime.Timespec // G-GUA's EDF-PIP fallback deadline
	Period       chronostime.Timespec
	Left         chronostime.Timespec // WCET budget remaining in the current job
	ExecTime     chronostime.Timespec // WCET budget per job
	MaxUtil      int64

	LocalIVD  int64
	GlobalIVD int64

	SegStart chronostime.Timespec

	// RequestedResource is non-nil while this task is blocked waiting
	// to acquire a scheduler-managed mutex.
	RequestedResource *Resource

	// HeldResources are the mutexes this task currently owns, needed by
	// RMA-ICPP to raise the task's effective period while it holds a
	// contended lock.
	HeldResources []*Resource

	Graph     Graph
	AbortInfo AbortInfo
}

// New returns a Task ready for admission with sensible zero values.
func New(pid int) *Task {
	return &Task{PID: pid, CPU: -1}
}

// SegJustStarted reports whether this task's real-time segment has not
// yet been mapped onto a CPU.
func (t *Task) SegJustStarted() bool { return t.CPU == -1 }

// SetFlag sets bits in the task's status flags.
func (t *Task) SetFlag(bits Flags) { t.Flags = t.Flags.Set(bits) }

// ClearFlag clears bits in the task's status flags.
func (t *Task) ClearFlag(bits Flags) { t.Flags = t.Flags.Clear(bits) }

// HasFlag reports whether every bit in bits is set.
func (t *Task) HasFlag(bits Flags) bool { return t.Flags.Has(bits) }

// EffectiveDeadline returns the HUA abort-handler deadline if the task
// has already failed and installed one, otherwise its normal deadline.
func (t *Task) EffectiveDeadline() chronostime.Timespec {
	if t.HasFlag(FlagAborted) && t.HasFlag(FlagHUA) {
		return t.AbortInfo.Deadline
	}
	return t.Deadline
}

// EffectiveMaxUtil mirrors EffectiveDeadline for the max-utility value.
func (t *Task) EffectiveMaxUtil() int64 {
	if t.HasFlag(FlagAborted) && t.HasFlag(FlagHUA) {
		return t.AbortInfo.MaxUtil
	}
	return t.MaxUtil
}

// EffectivePeriod returns the task's period, raised (shortened) to the
// lowest period-ceiling among any mutex it currently holds — the
// RMA-ICPP priority ceiling protocol.
func (t *Task) EffectivePeriod() chronostime.Timespec {
	period := t.Period
	for _, r := range t.HeldResources {
		if r.PeriodFloor.IsZero() {
			continue
		}
		if chronostime.Before(r.PeriodFloor, period) {
			period = r.PeriodFloor
		}
	}
	return period
}
