//go:build !linux

package abortplane

// New returns a Plane backed by a plain heap buffer. Non-Linux targets
// have no equivalent of the original mmap'd character device, so the
// scheduler and its tasks must run in the same process for this
// fallback to have the "shared memory" property at all — acceptable
// for tests and non-Linux development, not for a real deployment.
func New(opts ...Option) (Plane, error) {
	o := resolveOptions(opts)
	p := &memPlane{
		buf:    make([]byte, o.maxPID),
		logger: o.logger,
	}
	o.logger.Info("abort plane allocated (non-mmap fallback)", "max_pid", o.maxPID)
	return p, nil
}
