package sched

import "github.com/vtrts/chronos/task"

// Architecture is a global scheduling architecture: the strategy a
// domain uses to decide when a CPU must recompute the global mapping
// versus reuse a cached one, and how a ranked task list becomes a
// per-CPU assignment. Grounded on rt_sched_arch_{concurrent,stw,stw_jd}.
type Architecture interface {
	Name() string
	// Init prepares cpu for a scheduling pass, acquiring whatever locks
	// the architecture needs. It returns false if cpu should reuse its
	// previously assigned task instead of scheduling fresh (it blocked
	// on another CPU's in-progress global pass rather than running one
	// itself, or its cached mapping is still current); when it returns
	// false it holds no locks.
	Init(d *Domain, cpu int, block BlockFlag) bool
	// Release undoes whatever Init acquired. The concurrent architecture
	// also pokes other CPUs that now need to reschedule here; the
	// stop-the-world architectures do that in Init instead.
	Release(d *Domain, cpu int)
	// Preschedule offers a cheap shortcut before a full global pass;
	// returning non-nil skips ranking and mapping entirely.
	Preschedule(cpu int, ready []*task.Task) *task.Task
	// MapTasks turns ranked (the global policy's best-to-worst picks,
	// already trimmed to the number of active CPUs) into per-CPU
	// assignments recorded on d.
	MapTasks(d *Domain, self int, ranked []*task.Task)
}

// PrescheduleAbort scans ready for a task that missed its deadline and
// has no installed abort handler, so it can be pulled from scheduling
// immediately rather than waiting for a full pass. Shared by every
// architecture, mirroring presched_abort_generic.
func PrescheduleAbort(ready []*task.Task) *task.Task {
	for _, t := range ready {
		if t.HasFlag(task.FlagAborted) && !t.HasFlag(task.FlagHUA) {
			return t
		}
	}
	return nil
}

// Concurrent is the architecture where every CPU schedules
// independently and immediately: it locks only the task list (never
// the global scheduling lock), and claims just the single best task it
// can see for itself, mirroring rt_sched_arch_concurrent.
type Concurrent struct{}

func (Concurrent) Name() string { return "concurrent" }

func (Concurrent) Init(d *Domain, _ int, _ BlockFlag) bool {
	d.LockTaskList()
	return true
}

func (Concurrent) Release(d *Domain, cpu int) {
	d.UnlockTaskList()
	tasks := int(d.TaskCount())
	cpus := d.activeCPUs()
	if tasks >= cpus {
		d.rescheduleAllExcept(cpu)
	} else {
		d.rescheduleCountExcept(cpu, tasks)
	}
}

// Preschedule returns the first ready task already assigned to cpu, so
// a CPU re-running its own task doesn't need a full pass.
func (Concurrent) Preschedule(cpu int, ready []*task.Task) *task.Task {
	for _, t := range ready {
		if t.CPU == cpu {
			return t
		}
	}
	return nil
}

// MapTasks claims only ranked[0] (the single best task this CPU's own
// scheduling pass produced) for self, mirroring map_to_me. The claimed
// task is assigned to self and dropped from the domain's global list,
// mirroring GFIFO's _remove_task_global: Concurrent is the
// claim-and-remove architecture, unlike stop-the-world's reusable
// mapping.
func (Concurrent) MapTasks(d *Domain, self int, ranked []*task.Task) {
	if len(ranked) == 0 {
		d.globalTask[self] = nil
		return
	}
	t := ranked[0]
	t.CPU = self
	d.globalTask[self] = t
	d.removeTaskLocked(t)
}

// stopTheWorld is the shared implementation behind the STW and
// STW-Job-Dynamic architectures: the whole domain pauses while one CPU
// computes every CPU's assignment at once.
type stopTheWorld struct {
	jobDynamic bool
}

// STW returns the stop-the-world architecture: a CPU only recomputes
// the global mapping when it starts a new segment or its cached view
// of the task list is stale.
func STW() Architecture { return &stopTheWorld{} }

// STWJobDynamic returns the job-dynamic stop-the-world architecture:
// every scheduling call recomputes the global mapping unconditionally,
// since a policy whose priorities can change mid-job (G-GUA, for
// instance) can't trust a cached assignment even within one segment.
func STWJobDynamic() Architecture { return &stopTheWorld{jobDynamic: true} }

func (a *stopTheWorld) Name() string {
	if a.jobDynamic {
		return "stw-jd"
	}
	return "stw"
}

func (a *stopTheWorld) Init(d *Domain, cpu int, block BlockFlag) bool {
	if block == BlockMustBlock || !d.TryLockSched(cpu) {
		d.blockOnSchedLock(cpu)
		return false
	}

	d.LockTaskList()

	needsGlobalPass := a.jobDynamic || d.segJustStartedOnCPU(cpu) || !d.CheckQueueStamp(cpu)
	if !needsGlobalPass {
		d.UnlockTaskList()
		d.UnlockSched(cpu)
		return false
	}
	if needsGlobalPass {
		d.UnlockTaskList()

		tasks := int(d.TaskCount())
		cpus := d.activeCPUs()
		if tasks <= cpus {
			d.rescheduleCountExcept(cpu, tasks)
		} else {
			d.rescheduleAllExcept(cpu)
		}

		d.LockTaskList()
	}

	return true
}

func (a *stopTheWorld) Release(d *Domain, cpu int) {
	d.UnlockSched(cpu)
	d.UnlockTaskList()
}

// Preschedule always defers to a full global pass, mirroring
// presched_stw_generic.
func (a *stopTheWorld) Preschedule(int, []*task.Task) *task.Task { return nil }

// MapTasks assigns every active CPU at once, preferring to keep each
// CPU running whichever ranked task is already its own (minimizing
// migration) before handing out the rest, mirroring
// generic_map_all_tasks/find_best_task/find_any_task.
func (a *stopTheWorld) MapTasks(d *Domain, _ int, ranked []*task.Task) {
	remaining := append([]*task.Task(nil), ranked...)
	unassigned := make([]bool, len(d.mask))
	copy(unassigned, d.mask)

	for cpu, on := range d.mask {
		if !on {
			continue
		}
		idx := bestTaskIndexForCPU(remaining, cpu)
		if idx < 0 {
			continue
		}
		remaining[idx].CPU = cpu
		d.globalTask[cpu] = remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		unassigned[cpu] = false
	}

	for cpu, pending := range unassigned {
		if !pending {
			continue
		}
		if len(remaining) == 0 {
			d.globalTask[cpu] = nil
			continue
		}
		remaining[0].CPU = cpu
		d.globalTask[cpu] = remaining[0]
		remaining = remaining[1:]
	}
}

// bestTaskIndexForCPU prefers a task already executing (Scheduled) on
// cpu, falling back to the last ranked task still assigned there,
// mirroring find_best_task's do/while scan.
func bestTaskIndexForCPU(ranked []*task.Task, cpu int) int {
	best := -1
	for i, t := range ranked {
		if t.CPU != cpu {
			continue
		}
		best = i
		if t.HasFlag(task.FlagScheduled) {
			return i
		}
	}
	return best
}
