// Package mcs implements the MCS queue lock (Mellor-Crummey & Scott,
// "Algorithms for scalable synchronization on shared-memory
// multiprocessors"), the spinlock the global scheduling domain uses to
// serialize cross-CPU scheduling decisions without the cache-line
// contention a plain test-and-set spinlock would cause under many CPUs.
package mcs

import (
	"runtime"
	"sync/atomic"
)

// Node is a per-waiter queue node. Callers typically keep one Node per
// CPU (or per goroutine acting as a CPU) and reuse it across Lock/Unlock
// calls, mirroring the original's per-CPU DECLARE_PER_CPU node.
type Node struct {
	next   atomic.Pointer[Node]
	locked atomic.Bool
}

// Lock is the MCS queue lock itself: a single tail pointer.
type Lock struct {
	tail atomic.Pointer[Node]
}

// IsLocked reports whether the lock is currently held by anyone. This is
// inherently racy and intended for diagnostics only.
func (l *Lock) IsLocked() bool {
	return l.tail.Load() != nil
}

// TryLock attempts to acquire the lock without blocking, using node as
// this caller's queue node. It succeeds only if the lock was free.
func (l *Lock) TryLock(node *Node) bool {
	node.next.Store(nil)
	node.locked.Store(false)
	return l.tail.CompareAndSwap(nil, node)
}

// Lock acquires the lock, enqueueing node and spinning on its local
// "locked" flag if a predecessor already holds the lock. Spinning on a
// field local to node (rather than on shared lock state) is the whole
// point of the algorithm: every waiter spins on its own cache line.
func (l *Lock) Lock(node *Node) {
	node.next.Store(nil)
	node.locked.Store(false)

	pred := l.tail.Swap(node)
	if pred == nil {
		return
	}
	node.locked.Store(true)
	pred.next.Store(node)
	for node.locked.Load() {
		runtime.Gosched()
	}
}

// Unlock releases the lock acquired with the matching Lock/TryLock call
// on node.
func (l *Lock) Unlock(node *Node) {
	if node.next.Load() == nil {
		if l.tail.CompareAndSwap(node, nil) {
			return
		}
		for node.next.Load() == nil {
			runtime.Gosched()
		}
	}
	node.next.Load().locked.Store(false)
	node.next.Store(nil)
}
