// Package sched implements the scheduler registry, the global
// scheduling domain, and the three scheduling architectures
// (Concurrent, Stop-the-World, and Stop-the-World Job-Dynamic) that
// coordinate a domain's CPUs. Grounded on
// original_source/kernel/chronos_sched.c and
// original_source/include/linux/chronos_sched.h.
package sched

import (
	"sync"

	"github.com/vtrts/chronos"
	"github.com/vtrts/chronos/chronoslog"
	"github.com/vtrts/chronos/policy"
	"github.com/vtrts/chronos/task"
)

// Registry is the module-level table of registered local and global
// policies, mirroring rt_sched_list/global_domain_list and
// add/remove/get_local/global_scheduler.
type Registry struct {
	mu     sync.RWMutex
	local  map[task.PolicyID]policy.Local
	global map[task.PolicyID]policy.Global
	logger chronoslog.Logger
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

// NewRegistry returns a Registry pre-populated with every built-in
// local and global policy.
func NewRegistry(opts ...Option) *Registry {
	o := &registryOptions{logger: chronoslog.NewNoOpLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	r := &Registry{
		local:  make(map[task.PolicyID]policy.Local),
		global: make(map[task.PolicyID]policy.Global),
		logger: o.logger,
	}
	for _, p := range []policy.Local{
		policy.FIFO{}, policy.RMA{}, policy.EDF{}, policy.HVDF{},
		policy.FIFORA{}, policy.RMAICPP{}, policy.RMAOCPP{},
	} {
		_ = r.AddLocal(p)
	}
	for _, p := range []policy.Global{policy.GFIFO{}, policy.GRMA{}} {
		_ = r.AddGlobal(p)
	}
	return r
}

// AddLocal registers a local policy, failing if its id is already
// taken.
func (r *Registry) AddLocal(p policy.Local) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.local[p.ID()]; ok {
		return chronos.ErrExists
	}
	r.local[p.ID()] = p
	r.logger.Info("registered local scheduler", "name", p.Name(), "id", p.ID())
	return nil
}

// RemoveLocal unregisters a local policy. Any task still configured to
// use it will observe GetLocal falling back to FIFO — the original's
// behavior of demoting orphaned tasks to the always-available FIFO
// policy rather than leaving them with no scheduler at all.
func (r *Registry) RemoveLocal(id task.PolicyID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == task.PolicyFIFO {
		return // FIFO can never be removed, it's the fallback
	}
	delete(r.local, id)
	r.logger.Warn("unregistered local scheduler, tasks fall back to FIFO", "id", id)
}

// GetLocal returns the local policy registered under id, or FIFO if
// none is registered.
func (r *Registry) GetLocal(id task.PolicyID) policy.Local {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.local[id]; ok {
		return p
	}
	return policy.FIFO{}
}

// AddGlobal registers a global policy, failing if its id is already
// taken.
func (r *Registry) AddGlobal(p policy.Global) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.global[p.ID()]; ok {
		return chronos.ErrExists
	}
	r.global[p.ID()] = p
	r.logger.Info("registered global scheduler", "name", p.Name(), "id", p.ID())
	return nil
}

// RemoveGlobal unregisters a global policy.
func (r *Registry) RemoveGlobal(id task.PolicyID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == task.PolicyGFIFO {
		return // GFIFO can never be removed, it's the fallback
	}
	delete(r.global, id)
}

// GetGlobal returns the global policy registered under id, or GFIFO if
// none is registered.
func (r *Registry) GetGlobal(id task.PolicyID) policy.Global {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.global[id]; ok {
		return p
	}
	return policy.GFIFO{}
}
