package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtrts/chronos/policy"
	"github.com/vtrts/chronos/task"
)

func newTestTask(pid int, seq uint64) *task.Task {
	tk := task.New(pid)
	tk.Seq = seq
	return tk
}

func TestDomainAddRemoveTaskBumpsQueueStamp(t *testing.T) {
	d := NewDomain(policy.GRMA{}, STW(), 2)
	initial := d.queueStamp

	a := newTestTask(1, 1)
	d.AddTask(a)
	assert.Equal(t, initial+1, d.queueStamp)
	assert.Equal(t, int64(1), d.TaskCount())

	require.True(t, d.RemoveTask(a))
	assert.Equal(t, initial+2, d.queueStamp)
	assert.Equal(t, int64(0), d.TaskCount())
	assert.False(t, d.RemoveTask(a))
}

func TestDomainCheckGlobalInsertOnlyWhenFlagged(t *testing.T) {
	d := NewDomain(policy.GRMA{}, STW(), 1)
	a := newTestTask(1, 1)

	d.CheckGlobalInsert(a)
	assert.Equal(t, int64(0), d.TaskCount())

	a.SetFlag(task.FlagInsertGlobal)
	d.CheckGlobalInsert(a)
	assert.Equal(t, int64(1), d.TaskCount())
	assert.False(t, a.HasFlag(task.FlagInsertGlobal))
}

func TestDomainTaskPullable(t *testing.T) {
	d := NewDomain(policy.GRMA{}, STW(), 2)
	fresh := newTestTask(1, 1)
	assert.True(t, d.TaskPullable(fresh, 0))
	assert.True(t, d.TaskPullable(fresh, 1))

	fresh.CPU = 0
	assert.True(t, d.TaskPullable(fresh, 0))
	assert.False(t, d.TaskPullable(fresh, 1))
}

func TestDomainSchedLockRoundTrip(t *testing.T) {
	d := NewDomain(policy.GRMA{}, STW(), 2)
	assert.False(t, d.IsSchedLocked())
	require.True(t, d.TryLockSched(0))
	assert.True(t, d.IsSchedLocked())
	d.UnlockSched(0)
	assert.False(t, d.IsSchedLocked())
}

func TestDomainScheduleConcurrentAssignsReadyTask(t *testing.T) {
	d := NewDomain(policy.GFIFO{}, Concurrent{}, 1)
	a := newTestTask(1, 1)
	d.AddTask(a)

	got := d.Schedule(0, BlockNone)
	require.NotNil(t, got)
	assert.Equal(t, a.PID, got.PID)
	assert.Equal(t, 0, got.CPU)
	assert.Equal(t, int64(0), d.TaskCount()) // Concurrent claims and removes
}

func TestDomainScheduleSTWMapsAllCPUs(t *testing.T) {
	d := NewDomain(policy.GRMA{}, STW(), 2)
	a := newTestTask(1, 1)
	b := newTestTask(2, 2)
	d.AddTask(a)
	d.AddTask(b)

	got0 := d.Schedule(0, BlockNone)
	require.NotNil(t, got0)
	// Both CPUs should have an assignment after one STW pass.
	assert.NotNil(t, d.globalTask[0])
	assert.NotNil(t, d.globalTask[1])
	assert.NotEqual(t, d.globalTask[0].PID, d.globalTask[1].PID)
	assert.Equal(t, 0, d.globalTask[0].CPU)
	assert.Equal(t, 1, d.globalTask[1].CPU)
	assert.Equal(t, int64(2), d.TaskCount()) // STW never removes from the list
}

func TestPrescheduleAbortFindsUnhandledAbort(t *testing.T) {
	a := newTestTask(1, 1)
	b := newTestTask(2, 2)
	b.SetFlag(task.FlagAborted)

	got := PrescheduleAbort([]*task.Task{a, b})
	require.NotNil(t, got)
	assert.Equal(t, 2, got.PID)
}

func TestPrescheduleAbortSkipsHUA(t *testing.T) {
	a := newTestTask(1, 1)
	a.SetFlag(task.FlagAborted | task.FlagHUA)
	assert.Nil(t, PrescheduleAbort([]*task.Task{a}))
}
