package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/queue"
	"github.com/vtrts/chronos/task"
)

func TestGFIFOArrivalOrder(t *testing.T) {
	p := GFIFO{}
	ready := queue.NewList(p.SortKey())
	a, b := newTask(1), newTask(2)
	a.Seq, b.Seq = 9, 1
	ready.Insert(a)
	ready.Insert(b)
	got := p.Schedule(ready, chronostime.Zero, 0)
	assert.Equal(t, 2, got.PID)
	assert.Equal(t, "GFIFO", p.Name())
	assert.Equal(t, task.PolicyGFIFO, p.ID())
}

// GFIFO only picks a task pullable to the asking CPU: arrival order is
// skipped over for a task already running elsewhere.
func TestGFIFOSkipsTaskPinnedToOtherCPU(t *testing.T) {
	p := GFIFO{}
	ready := queue.NewList(p.SortKey())
	pinned, free := newTask(1), newTask(2)
	pinned.Seq, free.Seq = 1, 2
	pinned.CPU = 1 // already running on CPU 1
	ready.Insert(pinned)
	ready.Insert(free)

	got := p.Schedule(ready, chronostime.Zero, 0)
	require.NotNil(t, got)
	assert.Equal(t, free.PID, got.PID)
}

// The chosen task is removed from ready, mirroring _remove_task_global.
func TestGFIFORemovesChosenTaskFromReady(t *testing.T) {
	p := GFIFO{}
	ready := queue.NewList(p.SortKey())
	a := newTask(1)
	ready.Insert(a)

	got := p.Schedule(ready, chronostime.Zero, 0)
	require.NotNil(t, got)
	assert.Len(t, ready.Tasks(), 0)
}

func TestGRMAPeriodOrder(t *testing.T) {
	p := GRMA{}
	ready := queue.NewList(p.SortKey())
	a, b := newTask(1), newTask(2)
	a.Period = chronostime.Timespec{Sec: 5}
	b.Period = chronostime.Timespec{Sec: 1}
	ready.Insert(a)
	ready.Insert(b)
	got := p.Schedule(ready, chronostime.Zero, 0)
	assert.Equal(t, 2, got.PID)
	assert.Equal(t, task.PolicyGRMA, p.ID())
}
