package abortplane

import (
	"sync"

	"github.com/vtrts/chronos"
	"github.com/vtrts/chronos/chronoslog"
)

// memPlane is the shared implementation backing both the mmap-based
// Linux plane and the heap-slice fallback: a byte buffer plus whatever
// teardown its allocator needs.
type memPlane struct {
	mu     sync.RWMutex
	buf    []byte
	closer func() error
	logger chronoslog.Logger
	closed bool
}

func (p *memPlane) Set(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return chronos.ErrInvalid
	}
	if pid < 0 || pid >= len(p.buf) {
		return chronos.ErrBadAddress
	}
	p.buf[pid] = 1
	return nil
}

func (p *memPlane) Clear(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return chronos.ErrInvalid
	}
	if pid < 0 || pid >= len(p.buf) {
		return chronos.ErrBadAddress
	}
	p.buf[pid] = 0
	return nil
}

func (p *memPlane) IsSet(pid int) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false, chronos.ErrInvalid
	}
	if pid < 0 || pid >= len(p.buf) {
		return false, chronos.ErrBadAddress
	}
	return p.buf[pid] != 0, nil
}

func (p *memPlane) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.logger != nil {
		p.logger.Info("abort plane closed")
	}
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
