package segment

import "github.com/vtrts/chronos/task"

// ClassSwitcher promotes a task to the real-time scheduling class and
// restores its prior class, the host-OS hook BEGIN/END rely on. No
// example in the reference corpus models an OS scheduling-class
// switch directly, so this stays an interface over a concrete host
// integration rather than importing anything — see DESIGN.md.
type ClassSwitcher interface {
	// PromoteRT switches t to the real-time class at prio, returning
	// the previous class's priority isn't required; BEGIN only needs
	// to know the switch succeeded.
	PromoteRT(t *task.Task, prio int) error
	// Restore switches t back to its prior scheduling class, returning
	// the priority it now runs at (so END can decide whether a yield
	// would actually demote the caller).
	Restore(t *task.Task) (int, error)
	// CurrentPriority reports t's priority immediately before a
	// Restore call, so END can compare it against the restored value.
	CurrentPriority(t *task.Task) int
}

// NoOpClassSwitcher is the default ClassSwitcher: it tracks nothing
// and always reports priority 0, suitable for tests and for hosts that
// don't expose a real scheduling-class switch (everything runs as
// plain goroutines).
type NoOpClassSwitcher struct{}

func (NoOpClassSwitcher) PromoteRT(*task.Task, int) error { return nil }
func (NoOpClassSwitcher) Restore(*task.Task) (int, error) { return 0, nil }
func (NoOpClassSwitcher) CurrentPriority(*task.Task) int  { return 0 }
