package sched

import (
	"sync"
	"sync/atomic"

	"github.com/vtrts/chronos/chronoslog"
	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/ivd"
	"github.com/vtrts/chronos/mcs"
	"github.com/vtrts/chronos/policy"
	"github.com/vtrts/chronos/queue"
	"github.com/vtrts/chronos/task"
)

// BlockFlag tells an architecture's Init whether the caller must block
// on the scheduling lock unconditionally, mirroring BLOCK_FLAG_MUST_BLOCK.
type BlockFlag int

const (
	BlockNone BlockFlag = iota
	BlockMustBlock
)

// Domain is a global scheduling domain: a set of CPUs sharing one
// global task list and one global scheduling policy, coordinated
// through an MCS lock the way create_global_domain wires one up.
type Domain struct {
	listMu     sync.Mutex // global_task_list_lock
	schedLock  mcs.Lock   // global_sched_lock
	schedNodes []mcs.Node // per-cpu DECLARE_PER_CPU node

	tasks      *queue.List // global_task_list
	queueStamp uint64
	taskCount  atomic.Int64 // g->tasks

	scheduler policy.Global
	arch      Architecture
	prio      int
	logger    chronoslog.Logger
	plane     ivd.AbortSink
	counters  ivd.Counters

	mask           []bool       // global_sched_mask
	lastQueueEvent []uint64     // per-cpu last_queue_event
	globalTask     []*task.Task // per-cpu global_task
	wake           []chan struct{}
}

// Option configures a Domain.
type Option interface{ apply(*domainOptions) }

type domainOptions struct {
	logger   chronoslog.Logger
	prio     int
	mask     []bool
	plane    ivd.AbortSink
	counters ivd.Counters
}

type optFunc func(*domainOptions)

func (f optFunc) apply(o *domainOptions) { f(o) }

// WithLogger attaches a logger to the domain.
func WithLogger(l chronoslog.Logger) Option {
	return optFunc(func(o *domainOptions) { o.logger = l })
}

// WithPriority sets the domain's Chronos scheduling priority, used when
// deciding which other CPUs' current tasks are worth preempting.
func WithPriority(prio int) Option {
	return optFunc(func(o *domainOptions) { o.prio = prio })
}

// WithCPUMask restricts the domain to the given CPUs (mask[i] true
// means CPU i participates). Defaults to every CPU participating.
func WithCPUMask(mask []bool) Option {
	return optFunc(func(o *domainOptions) { o.mask = append([]bool(nil), mask...) })
}

// WithAbortPlane attaches the cooperative abort plane the domain
// signals when a scheduling pass detects a deadline miss.
func WithAbortPlane(plane ivd.AbortSink) Option {
	return optFunc(func(o *domainOptions) { o.plane = plane })
}

// WithCounters attaches the counters a deadline-miss abort should bump.
func WithCounters(counters ivd.Counters) Option {
	return optFunc(func(o *domainOptions) { o.counters = counters })
}

// NewDomain creates a global scheduling domain spanning cpus logical
// CPUs, scheduled by scheduler under arch.
func NewDomain(scheduler policy.Global, arch Architecture, cpus int, opts ...Option) *Domain {
	o := &domainOptions{logger: chronoslog.NewNoOpLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	mask := o.mask
	if mask == nil {
		mask = make([]bool, cpus)
		for i := range mask {
			mask[i] = true
		}
	}
	wake := make([]chan struct{}, cpus)
	for i := range wake {
		wake[i] = make(chan struct{}, 1)
	}
	return &Domain{
		tasks:          queue.NewList(scheduler.SortKey()),
		queueStamp:     1,
		scheduler:      scheduler,
		arch:           arch,
		prio:           o.prio,
		logger:         o.logger,
		plane:          o.plane,
		counters:       o.counters,
		mask:           mask,
		lastQueueEvent: make([]uint64, cpus),
		globalTask:     make([]*task.Task, cpus),
		schedNodes:     make([]mcs.Node, cpus),
		wake:           wake,
	}
}

// CPUs reports how many logical CPUs this domain spans.
func (d *Domain) CPUs() int { return len(d.globalTask) }

// LockTaskList acquires the raw spinlock protecting the global task
// list, mirroring lock_global_task_list.
func (d *Domain) LockTaskList() { d.listMu.Lock() }

// UnlockTaskList releases the global task list lock.
func (d *Domain) UnlockTaskList() { d.listMu.Unlock() }

// AddTask inserts t into the global task list, bumping the queue stamp
// so every CPU's cached view is invalidated.
func (d *Domain) AddTask(t *task.Task) {
	d.listMu.Lock()
	defer d.listMu.Unlock()
	d.queueStamp++
	d.tasks.Insert(t)
	d.taskCount.Add(1)
}

// RemoveTask removes t from the global task list if present.
func (d *Domain) RemoveTask(t *task.Task) bool {
	d.listMu.Lock()
	defer d.listMu.Unlock()
	return d.removeTaskLocked(t)
}

// removeTaskLocked is RemoveTask's body for callers that already hold
// listMu (e.g. an architecture's MapTasks, called between Init and
// Release), where re-acquiring it would deadlock.
func (d *Domain) removeTaskLocked(t *task.Task) bool {
	if !d.tasks.Remove(t) {
		return false
	}
	d.queueStamp++
	d.taskCount.Add(-1)
	return true
}

// CheckGlobalInsert inserts t into the domain if it is flagged pending
// global insertion, clearing the flag, mirroring check_global_insert.
func (d *Domain) CheckGlobalInsert(t *task.Task) {
	if t.HasFlag(task.FlagInsertGlobal) {
		d.AddTask(t)
		t.ClearFlag(task.FlagInsertGlobal)
	}
}

// TaskCount reports the number of tasks currently on the global list.
func (d *Domain) TaskCount() int64 { return d.taskCount.Load() }

// CheckQueueStamp reports whether cpu's cached view of the global list
// is still current. Callers must hold the task list lock, matching
// check_queue_stamp's documented contract.
func (d *Domain) CheckQueueStamp(cpu int) bool {
	return d.queueStamp == d.lastQueueEvent[cpu]
}

// PublishQueueStamp records that cpu has observed the current queue
// stamp, to be called once cpu has finished a global scheduling pass.
func (d *Domain) PublishQueueStamp(cpu int) {
	d.lastQueueEvent[cpu] = d.queueStamp
}

// TaskPullable reports whether t may run on cpu: either it's already
// assigned there, or it hasn't been assigned anywhere yet.
func (d *Domain) TaskPullable(t *task.Task, cpu int) bool {
	return t.CPU == cpu || t.SegJustStarted()
}

// TryLockSched attempts to acquire the domain's global scheduling lock
// for cpu without blocking.
func (d *Domain) TryLockSched(cpu int) bool { return d.schedLock.TryLock(&d.schedNodes[cpu]) }

// LockSched acquires the global scheduling lock for cpu, blocking.
func (d *Domain) LockSched(cpu int) { d.schedLock.Lock(&d.schedNodes[cpu]) }

// UnlockSched releases the global scheduling lock held by cpu.
func (d *Domain) UnlockSched(cpu int) { d.schedLock.Unlock(&d.schedNodes[cpu]) }

// IsSchedLocked reports whether any CPU currently holds the scheduling
// lock. Racy by nature; used only to decide whether to wait for it.
func (d *Domain) IsSchedLocked() bool { return d.schedLock.IsLocked() }

// blockOnSchedLock waits for whoever holds the global scheduling lock
// to release it, without itself trying to schedule globally,
// mirroring block_generic's acquire-then-immediately-release idiom.
func (d *Domain) blockOnSchedLock(cpu int) {
	if d.IsSchedLocked() {
		d.LockSched(cpu)
		d.UnlockSched(cpu)
	}
}

// segJustStartedOnCPU reports whether cpu's currently assigned task (if
// any) just started a new segment, the condition init_stw uses to
// decide a cached mapping can no longer be trusted.
func (d *Domain) segJustStartedOnCPU(cpu int) bool {
	t := d.globalTask[cpu]
	return t == nil || t.SegJustStarted()
}

func (d *Domain) activeCPUs() int {
	n := 0
	for _, on := range d.mask {
		if on {
			n++
		}
	}
	return n
}

// wakeCPU nudges cpu to reschedule, non-blocking: a missed wakeup just
// means cpu will notice on its next natural scheduling pass, same as a
// lost IPI would under the original's best-effort reschedule_*_global_cpus.
func (d *Domain) wakeCPU(cpu int) {
	if cpu < 0 || cpu >= len(d.wake) {
		return
	}
	select {
	case d.wake[cpu] <- struct{}{}:
	default:
	}
}

// Notify returns the channel cpu can select on to learn it was asked to
// reschedule globally.
func (d *Domain) Notify(cpu int) <-chan struct{} { return d.wake[cpu] }

// rescheduleAllExcept wakes every masked-in CPU other than self.
func (d *Domain) rescheduleAllExcept(self int) {
	for cpu, on := range d.mask {
		if cpu == self || !on {
			continue
		}
		d.wakeCPU(cpu)
	}
}

// rescheduleCountExcept wakes up to tasks masked-in CPUs other than
// self, mirroring reschedule_count_global_cpus.
func (d *Domain) rescheduleCountExcept(self, tasks int) {
	if tasks <= 0 {
		return
	}
	remaining := tasks
	for cpu, on := range d.mask {
		if cpu == self || !on {
			continue
		}
		d.wakeCPU(cpu)
		remaining--
		if remaining == 0 {
			return
		}
	}
}

// rankTasks asks the domain's global policy for up to n best tasks, in
// priority order, mirroring a generic G-xxx policy's pick-the-m-best
// behavior ahead of generic_map_all_tasks.
func (d *Domain) rankTasks(n, cpu int) []*task.Task {
	working := d.tasks.Copy()
	ranked := make([]*task.Task, 0, n)
	now := chronostime.Now()
	for i := 0; i < n; i++ {
		t := d.scheduler.Schedule(working, now, cpu)
		if t == nil {
			break
		}
		working.Remove(t)
		ranked = append(ranked, t)
	}
	return ranked
}

// Schedule runs one full scheduling pass for cpu: the architecture's
// init hook, any presched shortcut, the global policy proper, the
// architecture's mapping function, and its release hook. It returns
// the task cpu should now run, or nil if none is available.
func (d *Domain) Schedule(cpu int, block BlockFlag) *task.Task {
	if !d.arch.Init(d, cpu, block) {
		return d.globalTask[cpu]
	}
	defer d.arch.Release(d, cpu)

	ready := d.tasks.Tasks()
	now := chronostime.Now()
	for _, t := range ready {
		if t.HasFlag(task.FlagAborted) || t.EffectiveDeadline().IsZero() {
			continue // already handled, or no deadline contract in force yet
		}
		if ivd.CheckTaskFailure(t, now) {
			if err := ivd.HandleTaskFailure(t, d.plane, d.counters, d.logger); err != nil {
				d.logger.Error("deadline-miss handling failed", "pid", t.PID, "err", err)
			}
		}
	}

	if t := PrescheduleAbort(ready); t != nil {
		d.globalTask[cpu] = t
		return t
	}
	if t := d.arch.Preschedule(cpu, ready); t != nil {
		d.globalTask[cpu] = t
		return t
	}

	ranked := d.rankTasks(d.activeCPUs(), cpu)
	d.arch.MapTasks(d, cpu, ranked)
	d.PublishQueueStamp(cpu)
	return d.globalTask[cpu]
}
