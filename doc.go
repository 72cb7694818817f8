// Package chronos implements the core of a pluggable, real-time
// multiprocessor scheduling framework: per-CPU local scheduling
// policies, a global scheduling domain spanning multiple CPUs,
// scheduler-managed mutexes with priority inheritance, and a
// cooperative abort plane for communicating deadline misses back to
// user tasks.
//
// The framework is organized as a set of small packages, each owning
// one concern:
//
//	chronostime  - timespec arithmetic
//	mcs          - the MCS queue lock
//	task         - the task descriptor and its scheduling metadata
//	queue        - sorted task-list maintenance
//	ivd          - inverse value density, priority inheritance, deadlock marking
//	abortplane   - the cooperative per-PID abort-notification buffer
//	mutexreg     - the scheduler-managed mutex protocol
//	policy       - local and global scheduling policies
//	sched        - the scheduler registry and the global scheduling domain
//	segment      - the real-time segment API (begin/end/abort-handler)
//	chronosstats - diagnostic counters
//
// This root package holds only the error taxonomy shared by the
// syscall-facing packages.
package chronos
