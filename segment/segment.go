// Package segment implements the real-time segment system-call
// surface: BEGIN, END, and ADD_ABORT, the three operations a task uses
// to enter, leave, and configure its participation in real-time
// scheduling. Grounded on original_source/chronos/chronos_seg.c.
package segment

import (
	"math"
	"runtime"

	"github.com/vtrts/chronos"
	"github.com/vtrts/chronos/abortplane"
	"github.com/vtrts/chronos/chronoslog"
	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/ivd"
	"github.com/vtrts/chronos/sched"
	"github.com/vtrts/chronos/task"
)

// Infinite is the abort-handler deadline sentinel: a null user-supplied
// handler deadline means "never expires."
var Infinite = chronostime.Timespec{Sec: math.MaxInt64}

// BeginRequest carries the userspace-supplied data for the BEGIN
// operation, mirroring the op's {prio, exec_time, max_util, *deadline,
// *period} payload.
type BeginRequest struct {
	Priority int
	ExecTime chronostime.Timespec
	MaxUtil  int64
	Deadline chronostime.Timespec
	Period   chronostime.Timespec
	// Global, when true, marks the task for insertion into the global
	// scheduling domain rather than scheduled purely locally.
	Global bool
}

// AbortHandlerRequest carries the userspace-supplied data for the
// ADD_ABORT operation.
type AbortHandlerRequest struct {
	ExecTime chronostime.Timespec
	MaxUtil  int64
	// Deadline is the handler's own deadline; the zero value means
	// "infinite" per the ADD_ABORT contract.
	Deadline chronostime.Timespec
}

// Manager implements the three segment operations against a task,
// wiring in the abort plane, the domain a BEGIN'd task may join
// globally, and a host scheduling-class switcher.
type Manager struct {
	plane    abortplane.Plane
	counters ivd.Counters
	domain   *sched.Domain
	switcher ClassSwitcher
	logger   chronoslog.Logger
}

// Option configures a Manager.
type Option interface{ apply(*Manager) }

type optionFunc func(*Manager)

func (f optionFunc) apply(m *Manager) { f(m) }

// WithAbortPlane attaches the abort-byte plane BEGIN/END clear and
// which asynchronous aborts write into.
func WithAbortPlane(p abortplane.Plane) Option {
	return optionFunc(func(m *Manager) { m.plane = p })
}

// WithCounters attaches a statistics sink for abort bookkeeping.
func WithCounters(c ivd.Counters) Option {
	return optionFunc(func(m *Manager) { m.counters = c })
}

// WithDomain attaches the global scheduling domain BEGIN should insert
// into when a request asks for global scheduling.
func WithDomain(d *sched.Domain) Option {
	return optionFunc(func(m *Manager) { m.domain = d })
}

// WithClassSwitcher attaches the host scheduling-class switcher BEGIN
// and END use to promote/restore a task's underlying OS priority.
func WithClassSwitcher(s ClassSwitcher) Option {
	return optionFunc(func(m *Manager) { m.switcher = s })
}

// WithLogger attaches a logger.
func WithLogger(l chronoslog.Logger) Option {
	return optionFunc(func(m *Manager) { m.logger = l })
}

// NewManager builds a segment Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		switcher: NoOpClassSwitcher{},
		logger:   chronoslog.NewNoOpLogger(),
	}
	for _, o := range opts {
		if o != nil {
			o.apply(m)
		}
	}
	return m
}

// Begin implements the BEGIN operation: it clears every flag except
// HUA, installs the requested deadline/period/exec-time/max-utility,
// computes the task's initial local IVD, resets its resource-wait and
// dependency-chain state, marks it not-yet-placed (CPU = -1), clears
// any stale abort byte, and promotes it to the real-time scheduling
// class at the requested priority.
func (m *Manager) Begin(t *task.Task, req BeginRequest) error {
	if t == nil {
		return chronos.ErrInvalid
	}

	t.Flags = t.Flags & task.FlagHUA
	t.Deadline = req.Deadline
	t.Period = req.Period
	t.ExecTime = req.ExecTime
	t.Left = req.ExecTime
	t.MaxUtil = req.MaxUtil
	t.LocalIVD = ivd.Compute(req.ExecTime, req.MaxUtil)
	t.RequestedResource = nil
	t.Graph.DepChain = nil
	t.CPU = -1
	t.SegStart = chronostime.Now()

	if m.plane != nil {
		if err := m.plane.Clear(t.PID); err != nil {
			return chronos.WrapError("clearing abort byte on segment begin", err)
		}
	}

	if err := m.switcher.PromoteRT(t, req.Priority); err != nil {
		return chronos.WrapError("promoting task to real-time class", err)
	}

	if req.Global {
		t.SetFlag(task.FlagInsertGlobal)
		if m.domain != nil {
			m.domain.CheckGlobalInsert(t)
		}
	}

	m.logger.Debug("segment begin", "pid", t.PID, "priority", req.Priority, "global", req.Global)
	yield()
	return nil
}

// End implements the END operation: it restores the task's prior
// scheduling class, clears its abort record and flags, and yields only
// if doing so wouldn't demote a still-higher-priority caller.
func (m *Manager) End(t *task.Task) error {
	if t == nil {
		return chronos.ErrInvalid
	}

	before := m.switcher.CurrentPriority(t)
	restored, err := m.switcher.Restore(t)
	if err != nil {
		return chronos.WrapError("restoring prior scheduling class", err)
	}

	t.AbortInfo = task.AbortInfo{}
	t.Flags = task.FlagNone
	if m.domain != nil {
		m.domain.RemoveTask(t)
	}
	if m.plane != nil {
		if err := m.plane.Clear(t.PID); err != nil {
			return chronos.WrapError("clearing abort byte on segment end", err)
		}
	}

	m.logger.Debug("segment end", "pid", t.PID, "priority", restored)
	if restored <= before {
		yield()
	}
	return nil
}

// AddAbortHandler implements the ADD_ABORT operation: it records the
// handler's execution budget, maximum utility, and deadline (Infinite
// if the caller supplied the zero value), then sets the task's HUA
// flag so a future deadline miss runs the handler instead of aborting
// outright.
func (m *Manager) AddAbortHandler(t *task.Task, req AbortHandlerRequest) error {
	if t == nil {
		return chronos.ErrInvalid
	}
	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = Infinite
	}
	t.AbortInfo = task.AbortInfo{
		ExecTime: req.ExecTime,
		MaxUtil:  req.MaxUtil,
		Deadline: deadline,
	}
	t.SetFlag(task.FlagHUA)
	m.logger.Debug("abort handler attached", "pid", t.PID, "deadline", deadline)
	return nil
}

// yield approximates the original's explicit scheduler yield at a
// cooperative checkpoint: it gives other runnable goroutines (the
// stand-ins for other CPUs' scheduling loops) a chance to run.
func yield() { runtime.Gosched() }
