// Package mutexreg implements the scheduler-managed mutex protocol: a
// 3-state (free / held-no-waiters / held-waiters) compare-and-swap lock
// per resource, a per-process table of mutexes so a process can be torn
// down cleanly, and the blocking REQUEST/RELEASE operations a task
// issues to actually acquire and drop one.
//
// Grounded on original_source/chronos/chronos_mutex.c. The original
// validates a userspace-supplied mutex id by checking it is a pointer
// offset from a known process header (find_in_process: `head = process
// + m->id`, rejected if `head->id != m->id`); Go has no pointer
// arithmetic between unrelated allocations, so this package validates a
// generation-tagged slot index instead — the same "don't trust the
// caller's id outright, verify it cheaply" property, minus the unsafe
// pointer math.
package mutexreg

import (
	"context"
	"sync"

	"github.com/vtrts/chronos"
	"github.com/vtrts/chronos/chronoslog"
	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/task"
)

const (
	stateFree        = 0
	stateHeldNoWait  = 1
	stateHeldWaiters = 2
)

// mutexHead is one registered resource. Its Resource field is what
// task.Task.RequestedResource points at while a task waits on it.
type mutexHead struct {
	mu         sync.Mutex
	cond       *sync.Cond
	state      int32
	generation uint32
	resource   task.Resource // resource.Owner is the current owner, or nil if free
}

// processEntry is one process's table of mutexes it has created,
// mirroring process_mutex_list.
type processEntry struct {
	mu          sync.RWMutex
	tgid        int
	mutexes     []*mutexHead // index is the slot; a freed slot's pointer is nil
	generations []uint32     // last generation issued per slot, for reuse
}

// generationFor returns the last generation issued for slot (0 if
// never used). Callers must hold p.mu.
func (p *processEntry) generationFor(slot int) uint32 {
	if slot < len(p.generations) {
		return p.generations[slot]
	}
	return 0
}

// Registry is the module-level table of every process's mutexes
// (chronos_mutex_list).
type Registry struct {
	mu        sync.RWMutex
	processes map[int]*processEntry
	logger    chronoslog.Logger
}

// Option configures a Registry.
type Option interface{ apply(*registryOptions) }

type registryOptions struct {
	logger chronoslog.Logger
}

type optionFunc func(*registryOptions)

func (f optionFunc) apply(o *registryOptions) { f(o) }

// WithLogger attaches a logger to the registry.
func WithLogger(l chronoslog.Logger) Option {
	return optionFunc(func(o *registryOptions) { o.logger = l })
}

// NewRegistry returns an empty mutex registry.
func NewRegistry(opts ...Option) *Registry {
	o := &registryOptions{logger: chronoslog.NewNoOpLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	return &Registry{processes: make(map[int]*processEntry), logger: o.logger}
}

// ID is an opaque handle identifying a registered mutex: the slot it
// lives in within its owning process's table, tagged with a generation
// counter so a stale id from a destroyed-and-reused slot is rejected
// instead of silently addressing the wrong mutex.
type ID struct {
	Slot       int
	Generation uint32
}

func (r *Registry) process(tgid int, create bool) *processEntry {
	r.mu.RLock()
	p := r.processes[tgid]
	r.mu.RUnlock()
	if p != nil || !create {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.processes[tgid]; p != nil {
		return p
	}
	p = &processEntry{tgid: tgid}
	r.processes[tgid] = p
	return p
}

// Init creates a new mutex owned by no one and returns its id,
// mirroring init_rt_resource's INIT operation.
func (r *Registry) Init(tgid int) ID {
	p := r.process(tgid, true)
	p.mu.Lock()
	defer p.mu.Unlock()

	for slot, m := range p.mutexes {
		if m != nil {
			continue
		}
		gen := p.generationFor(slot) + 1
		head := &mutexHead{generation: gen}
		head.cond = sync.NewCond(&head.mu)
		p.mutexes[slot] = head
		p.generations[slot] = gen
		r.logger.Debug("mutex initialized", "tgid", tgid, "slot", slot)
		return ID{Slot: slot, Generation: gen}
	}

	head := &mutexHead{generation: 1}
	head.cond = sync.NewCond(&head.mu)
	p.mutexes = append(p.mutexes, head)
	p.generations = append(p.generations, head.generation)
	slot := len(p.mutexes) - 1
	r.logger.Debug("mutex initialized", "tgid", tgid, "slot", slot)
	return ID{Slot: slot, Generation: head.generation}
}

func (r *Registry) lookup(tgid int, id ID) (*processEntry, *mutexHead, error) {
	p := r.process(tgid, false)
	if p == nil {
		return nil, nil, chronos.ErrInvalid
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id.Slot < 0 || id.Slot >= len(p.mutexes) {
		return nil, nil, chronos.ErrBadAddress
	}
	m := p.mutexes[id.Slot]
	if m == nil || m.generation != id.Generation {
		return nil, nil, chronos.ErrBadAddress
	}
	return p, m, nil
}

// Destroy removes a mutex, mirroring destroy_rt_resource's DESTROY
// operation. It fails if the mutex is currently held.
func (r *Registry) Destroy(tgid int, id ID) error {
	p, m, err := r.lookup(tgid, id)
	if err != nil {
		return &chronos.MutexError{Op: "destroy", ID: uint64(id.Slot), Cause: err}
	}

	m.mu.Lock()
	if m.state != stateFree {
		m.mu.Unlock()
		return &chronos.MutexError{Op: "destroy", ID: uint64(id.Slot), Cause: chronos.ErrNotOwner}
	}
	m.generation++
	lastGen := m.generation
	m.mu.Unlock()

	p.mu.Lock()
	p.mutexes[id.Slot] = nil
	if id.Slot < len(p.generations) {
		p.generations[id.Slot] = lastGen
	}
	empty := true
	for _, mm := range p.mutexes {
		if mm != nil {
			empty = false
			break
		}
	}
	p.mu.Unlock()

	if empty {
		r.mu.Lock()
		delete(r.processes, tgid)
		r.mu.Unlock()
	}
	r.logger.Debug("mutex destroyed", "tgid", tgid, "slot", id.Slot)
	return nil
}

// Request acquires the mutex identified by id on behalf of waiter,
// blocking (respecting ctx) if it is already held by a different task.
// Requesting a mutex the caller already holds is reentrant and succeeds
// immediately, matching request_rt_resource. If the owner has been
// aborted without an abort handler, Request returns ErrOwnerDead
// instead of granting ownership of an abandoned resource. The owner is
// checked on entry and each time a parked waiter wakes; an owner's
// abort by itself does not wake a parked waiter.
func (r *Registry) Request(ctx context.Context, tgid int, id ID, waiter *task.Task) error {
	_, m, err := r.lookup(tgid, id)
	if err != nil {
		return &chronos.MutexError{Op: "request", ID: uint64(id.Slot), Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resource.Owner == waiter {
		return nil // reentrant
	}

	if m.resource.PeriodFloor.IsZero() || chronostime.Before(waiter.Period, m.resource.PeriodFloor) {
		if !waiter.Period.IsZero() {
			m.resource.PeriodFloor = waiter.Period
		}
	}

	waiter.RequestedResource = &m.resource

	for {
		if m.resource.Owner != nil && m.resource.Owner.HasFlag(task.FlagAborted) && !m.resource.Owner.HasFlag(task.FlagHUA) {
			waiter.RequestedResource = nil
			return &chronos.MutexError{Op: "request", ID: uint64(id.Slot), Cause: chronos.ErrOwnerDead}
		}

		switch m.state {
		case stateFree:
			m.state = stateHeldNoWait
			m.resource.Owner = waiter
			waiter.RequestedResource = nil
			waiter.HeldResources = append(waiter.HeldResources, &m.resource)
			return nil
		default:
			m.state = stateHeldWaiters
		}

		if err := r.wait(ctx, m); err != nil {
			waiter.RequestedResource = nil
			return &chronos.MutexError{Op: "request", ID: uint64(id.Slot), Cause: err}
		}
	}
}

// wait blocks on m.cond until woken or ctx is done. Callers must hold
// m.mu.
func (r *Registry) wait(ctx context.Context, m *mutexHead) error {
	if ctx == nil || ctx.Err() == nil {
		done := make(chan struct{})
		if ctx != nil {
			go func() {
				select {
				case <-ctx.Done():
					m.mu.Lock()
					m.cond.Broadcast()
					m.mu.Unlock()
				case <-done:
				}
			}()
		}
		m.cond.Wait()
		close(done)
	}
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Release drops ownership of id, held by owner, mirroring
// release_rt_resource's RELEASE operation. If any waiters are parked it
// wakes all of them; one acquires the mutex and the rest park again.
func (r *Registry) Release(tgid int, id ID, owner *task.Task) error {
	_, m, err := r.lookup(tgid, id)
	if err != nil {
		return &chronos.MutexError{Op: "release", ID: uint64(id.Slot), Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resource.Owner != owner {
		return &chronos.MutexError{Op: "release", ID: uint64(id.Slot), Cause: chronos.ErrNotOwner}
	}

	m.resource.Owner = nil
	for i, r := range owner.HeldResources {
		if r == &m.resource {
			owner.HeldResources = append(owner.HeldResources[:i], owner.HeldResources[i+1:]...)
			break
		}
	}
	wasWaiters := m.state == stateHeldWaiters
	m.state = stateFree
	if wasWaiters {
		m.cond.Broadcast()
	}
	return nil
}

// Stats returns (processCount, mutexCount) for diagnostics.
func (r *Registry) Stats() (processes int, mutexes int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	processes = len(r.processes)
	for _, p := range r.processes {
		p.mu.RLock()
		for _, m := range p.mutexes {
			if m != nil {
				mutexes++
			}
		}
		p.mu.RUnlock()
	}
	return processes, mutexes
}
