//go:build linux

package abortplane

import "golang.org/x/sys/unix"

// New returns a Plane backed by an anonymous shared mmap, the Go
// analogue of the original's mmap'd character device: userspace tasks
// and the scheduler both see the same physical pages, so a scheduler
// write is visible to a polling task without a syscall.
func New(opts ...Option) (Plane, error) {
	o := resolveOptions(opts)
	buf, err := unix.Mmap(-1, 0, o.maxPID, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	p := &memPlane{
		buf:    buf,
		logger: o.logger,
		closer: func() error { return unix.Munmap(buf) },
	}
	o.logger.Info("abort plane mapped", "max_pid", o.maxPID)
	return p, nil
}
