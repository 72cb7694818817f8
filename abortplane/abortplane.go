// Package abortplane implements the cooperative abort-notification
// buffer: a byte per PID, shared between the scheduler and userspace,
// that the scheduler sets when a task's deadline miss requires aborting
// it and that the task polls cooperatively at safe points.
//
// The original exposed this as a character device (major 222) whose
// only real operation was mmap, mapping a fixed-size shared page into
// every task's address space. This package models the same contract as
// a Go interface, backed by a real anonymous mmap on Linux
// (abortplane_linux.go) and a plain heap buffer elsewhere
// (abortplane_other.go) — mirroring the per-OS split
// eventloop/poller_linux.go and poller_darwin.go use for a different
// syscall-backed primitive.
package abortplane

import "github.com/vtrts/chronos/chronoslog"

// Plane is the cooperative abort buffer.
type Plane interface {
	// Set marks pid for abort. Out-of-range pids return ErrBadAddress.
	Set(pid int) error
	// Clear un-marks pid, called once a task has observed and handled
	// its own abort.
	Clear(pid int) error
	// IsSet reports whether pid is currently marked for abort.
	IsSet(pid int) (bool, error)
	// Close releases the underlying buffer.
	Close() error
}

// Options configures New.
type Options struct {
	maxPID int
	logger chronoslog.Logger
}

// Option configures a Plane.
type Option interface{ apply(*Options) }

type optionFunc func(*Options)

func (f optionFunc) apply(o *Options) { f(o) }

// WithMaxPID sets the size of the shared buffer in bytes, so PIDs 0
// through n-1 can be tracked. Defaults to 65536, matching a typical
// pid_max.
func WithMaxPID(n int) Option {
	return optionFunc(func(o *Options) { o.maxPID = n })
}

// WithLogger attaches a logger for allocation/close diagnostics.
func WithLogger(l chronoslog.Logger) Option {
	return optionFunc(func(o *Options) { o.logger = l })
}

func resolveOptions(opts []Option) *Options {
	o := &Options{maxPID: 65536, logger: chronoslog.NewNoOpLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	return o
}
