// Package chronosstats implements the per-CPU and global counters the
// original exposed through /proc/chronos/{schedulers,stats,mutex},
// plus a textual dump in the same seq_printf-derived layout. Grounded
// on original_source/kernel/chronos_sched_stats.c and
// original_source/chronos/chronos_mutex_stats.c.
package chronosstats

import (
	"fmt"
	"io"
	"sync/atomic"
)

// CPUCounters tracks one CPU's scheduling activity, mirroring the
// per-rq sched_count_*/sched_ipi_*/task_pull*/seg_*_count fields.
type CPUCounters struct {
	SchedCountGlobal   atomic.Int64
	SchedCountLocal    atomic.Int64
	SchedCountBlock    atomic.Int64
	SchedCountPresched atomic.Int64
	IPISent            atomic.Int64
	IPIReceived        atomic.Int64
	IPIMissed          atomic.Int64
	TaskPulledFrom     atomic.Int64
	TaskPulledTo       atomic.Int64
	TaskPullFailed     atomic.Int64
	SegBeginCount      atomic.Int64
	SegEndCount        atomic.Int64
	SegAbortCount      atomic.Int64
}

// Reset zeroes every counter, mirroring clear_chronos_stats.
func (c *CPUCounters) Reset() {
	c.SchedCountGlobal.Store(0)
	c.SchedCountLocal.Store(0)
	c.SchedCountBlock.Store(0)
	c.SchedCountPresched.Store(0)
	c.IPISent.Store(0)
	c.IPIReceived.Store(0)
	c.IPIMissed.Store(0)
	c.TaskPulledFrom.Store(0)
	c.TaskPulledTo.Store(0)
	c.TaskPullFailed.Store(0)
	c.SegBeginCount.Store(0)
	c.SegEndCount.Store(0)
	c.SegAbortCount.Store(0)
}

// IncAbortCount satisfies ivd.Counters, letting the IVD/abort machinery
// bump a CPU's seg_abort_count without importing chronosstats itself.
func (c *CPUCounters) IncAbortCount() { c.SegAbortCount.Add(1) }

// MutexCounters tracks the process- and lock-wide mutex activity,
// mirroring the original's processes/locks/locking_success/
// locking_failure atomics.
type MutexCounters struct {
	Processes      atomic.Int64
	Locks          atomic.Int64
	LockingSuccess atomic.Int64
	LockingFailure atomic.Int64
}

// Stats bundles one Domain's worth of counters: one CPUCounters per
// logical CPU plus a single shared MutexCounters.
type Stats struct {
	Version string
	CPUs    []*CPUCounters
	Mutex   MutexCounters
}

// New allocates Stats for cpus logical CPUs.
func New(version string, cpus int) *Stats {
	s := &Stats{Version: version, CPUs: make([]*CPUCounters, cpus)}
	for i := range s.CPUs {
		s.CPUs[i] = &CPUCounters{}
	}
	return s
}

// Dump writes a human-readable report to w, following the original's
// "ChronOS Version: ..." header plus a per-CPU stats block and the
// shared mutex stats block.
func (s *Stats) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "ChronOS Version: %s\n", s.Version); err != nil {
		return err
	}
	for cpu, c := range s.CPUs {
		if _, err := fmt.Fprintf(w, "\nReal-Time Stats for CPU[%d]\n", cpu); err != nil {
			return err
		}
		rows := []struct {
			name string
			val  int64
		}{
			{"sched_count_global", c.SchedCountGlobal.Load()},
			{"sched_count_local", c.SchedCountLocal.Load()},
			{"sched_count_block", c.SchedCountBlock.Load()},
			{"sched_count_presched", c.SchedCountPresched.Load()},
			{"sched_ipi_sent", c.IPISent.Load()},
			{"sched_ipi_received", c.IPIReceived.Load()},
			{"sched_ipi_missed", c.IPIMissed.Load()},
			{"task_pulled_from", c.TaskPulledFrom.Load()},
			{"task_pulled_to", c.TaskPulledTo.Load()},
			{"task_pull_failed", c.TaskPullFailed.Load()},
			{"seg_begin_count", c.SegBeginCount.Load()},
			{"seg_end_count", c.SegEndCount.Load()},
			{"seg_abort_count", c.SegAbortCount.Load()},
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, "  .%-30s: %d\n", r.name, r.val); err != nil {
				return err
			}
		}
	}

	if _, err := fmt.Fprint(w, "\nReal-Time Locking Stats\n"); err != nil {
		return err
	}
	mutexRows := []struct {
		name string
		val  int64
	}{
		{"processes", s.Mutex.Processes.Load()},
		{"locks", s.Mutex.Locks.Load()},
		{"locking_success", s.Mutex.LockingSuccess.Load()},
		{"locking_failure", s.Mutex.LockingFailure.Load()},
	}
	for _, r := range mutexRows {
		if _, err := fmt.Fprintf(w, "  .%-30s: %d\n", r.name, r.val); err != nil {
			return err
		}
	}
	return nil
}
