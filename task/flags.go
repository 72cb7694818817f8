package task

// Flags is the task status bitset, mirroring chronos_types.h's
// TASK_FLAG_* constants.
type Flags uint8

const (
	FlagNone Flags = 0
	// FlagAborted marks a task whose current segment missed its
	// deadline and has already been aborted.
	FlagAborted Flags = 0x01
	// FlagHUA marks a task that installed a user abort handler (the
	// "have user abort" flag) instead of being aborted outright.
	FlagHUA Flags = 0x02
	// FlagScheduled marks a task currently selected to run.
	FlagScheduled Flags = 0x04
	// FlagDeadlocked marks a task identified as part of a priority
	// inheritance deadlock cycle.
	FlagDeadlocked Flags = 0x08
	// FlagInsertGlobal marks a task pending insertion into the global
	// scheduling domain's task list.
	FlagInsertGlobal Flags = 0x80

	FlagMask Flags = 0xFF
)

// Set reports f with bits set.
func (f Flags) Set(bits Flags) Flags { return f | bits }

// Clear reports f with bits cleared.
func (f Flags) Clear(bits Flags) Flags { return f &^ bits }

// Has reports whether every bit in bits is set in f.
func (f Flags) Has(bits Flags) bool { return f&bits == bits }

// SchedFlags configures per-task scheduling behavior at admission time,
// mirroring chronos_types.h's SCHED_FLAG_* constants.
type SchedFlags uint8

const (
	SchedFlagNone SchedFlags = 0
	// SchedFlagHUA requests that deadline misses invoke the task's
	// user abort handler instead of aborting it outright.
	SchedFlagHUA SchedFlags = 0x01
	// SchedFlagPI requests priority-inheritance-protected mutexes for
	// this task's resource requests.
	SchedFlagPI SchedFlags = 0x02
	// SchedFlagNoDeadlocks asserts the task's mutex usage is
	// statically deadlock-free, so the PI walk may abort on an
	// unexpected cycle rather than spend time marking it.
	SchedFlagNoDeadlocks SchedFlags = 0x04
)

func (f SchedFlags) Has(bits SchedFlags) bool { return f&bits == bits }

// SortKey names the metric a queue is currently ordered by.
type SortKey int

const (
	SortNone SortKey = iota
	SortArrival
	SortDeadline
	SortPeriod
	SortLocalIVD
	SortGlobalIVD
	SortTempDeadline
)

// PolicyID identifies a registered local or global scheduling policy,
// mirroring chronos_types.h's SCHED_RT_* constants. The high bit
// distinguishes global policies from local ones.
type PolicyID int

const (
	PolicyFIFO     PolicyID = 0x00
	PolicyRMA      PolicyID = 0x01
	PolicyEDF      PolicyID = 0x02
	PolicyHVDF     PolicyID = 0x03
	PolicyRMAICPP  PolicyID = 0x04
	PolicyRMAOCPP  PolicyID = 0x05
	PolicyFIFORA   PolicyID = 0x07
	PolicyGFIFO    PolicyID = 0x80
	PolicyGRMA     PolicyID = 0x81
	GlobalPolicyBit PolicyID = 0x80
)

// IsGlobal reports whether id names a global (cross-CPU) policy.
func (id PolicyID) IsGlobal() bool { return id&GlobalPolicyBit != 0 }
