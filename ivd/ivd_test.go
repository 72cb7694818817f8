package ivd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/task"
)

type fakePlane struct {
	set map[int]bool
}

func newFakePlane() *fakePlane { return &fakePlane{set: map[int]bool{}} }

func (f *fakePlane) Set(pid int) error {
	f.set[pid] = true
	return nil
}

type fakeCounters struct{ aborts int }

func (f *fakeCounters) IncAbortCount() { f.aborts++ }

func TestComputeZeroLeftIsInfinite(t *testing.T) {
	got := Compute(chronostime.Zero, 10)
	assert.Equal(t, int64(math.MaxInt64), got)
}

func TestComputeNonZeroUtil(t *testing.T) {
	got := Compute(chronostime.Timespec{Sec: 1}, 2) // 1e9 ns / 2
	assert.Equal(t, int64(500_000_000), got)
}

func TestComputeFloorsAtOne(t *testing.T) {
	got := Compute(chronostime.Timespec{Nsec: 1}, 10)
	assert.Equal(t, int64(1), got)
}

func TestLIVDSentinel(t *testing.T) {
	tk := task.New(1)
	tk.LocalIVD = -1 // pinned by a prior HandleTaskFailure abort
	assert.Equal(t, int64(-1), LIVD(tk, false, nil, nil, nil))
}

func TestLIVDStickyAfterAbortDoesNotRecompute(t *testing.T) {
	tk := task.New(1)
	tk.Left = chronostime.Timespec{Sec: 1}
	tk.MaxUtil = 1
	tk.LocalIVD = -1
	assert.Equal(t, int64(-1), LIVD(tk, false, nil, nil, nil))
	// LocalIVD itself is left untouched by the sticky check.
	assert.Equal(t, int64(-1), tk.LocalIVD)
}

func TestLIVDAccumulatesDepChain(t *testing.T) {
	a := task.New(1)
	a.Left = chronostime.Timespec{Sec: 1}
	a.MaxUtil = 1
	b := task.New(2)
	b.Left = chronostime.Timespec{Sec: 1}
	b.MaxUtil = 3
	a.Graph.DepChain = b

	// With the chain: 2s / (1+3) = 500ms; without it: 1s / 1 = 1s.

	withDep := LIVD(a, true, nil, nil, nil)
	withoutDep := LIVD(a, false, nil, nil, nil)
	assert.Less(t, withDep, withoutDep)
}

func TestLIVDOnDeadlockedTaskAbortsAndReturnsSentinel(t *testing.T) {
	a := task.New(1)
	a.SetFlag(task.FlagDeadlocked)
	plane := newFakePlane()
	counters := &fakeCounters{}
	got := LIVD(a, false, plane, counters, nil)
	assert.Equal(t, int64(-1), got)
	assert.True(t, a.HasFlag(task.FlagAborted))
	assert.Equal(t, 1, counters.aborts)
	assert.True(t, plane.set[1])
}

func TestCalcLeftFloorsAtZero(t *testing.T) {
	tk := task.New(1)
	tk.ExecTime = chronostime.Timespec{Sec: 1}
	tk.SegStart = chronostime.Zero
	now := chronostime.Timespec{Sec: 5}
	got := CalcLeft(tk, now)
	assert.Equal(t, chronostime.Zero, got)
}

func TestCheckTaskFailure(t *testing.T) {
	tk := task.New(1)
	tk.Deadline = chronostime.Timespec{Sec: 5}
	assert.False(t, CheckTaskFailure(tk, chronostime.Timespec{Sec: 4}))
	assert.True(t, CheckTaskFailure(tk, chronostime.Timespec{Sec: 5}))
	assert.True(t, CheckTaskFailure(tk, chronostime.Timespec{Sec: 6}))
}

func TestHandleTaskFailureWithoutHUA(t *testing.T) {
	tk := task.New(1)
	plane := newFakePlane()
	counters := &fakeCounters{}
	require.NoError(t, HandleTaskFailure(tk, plane, counters, nil))
	assert.True(t, tk.HasFlag(task.FlagAborted))
	assert.Equal(t, int64(-1), tk.LocalIVD)
	assert.Equal(t, 1, counters.aborts)
}

func TestHandleTaskFailureWithHUA(t *testing.T) {
	tk := task.New(1)
	tk.SetFlag(task.FlagHUA)
	tk.AbortInfo.Deadline = chronostime.Timespec{Sec: 99}
	counters := &fakeCounters{}
	require.NoError(t, HandleTaskFailure(tk, nil, counters, nil))
	assert.True(t, tk.HasFlag(task.FlagAborted))
	assert.Equal(t, int64(99), tk.EffectiveDeadline().Sec)
	assert.Equal(t, 0, counters.aborts)
}

func TestGetPITaskWalksChainToOwner(t *testing.T) {
	a, b, c := task.New(1), task.New(2), task.New(3)
	a.RequestedResource = &task.Resource{ID: 1, Owner: b}
	b.RequestedResource = &task.Resource{ID: 2, Owner: c}
	got := GetPITask(a)
	assert.Same(t, c, got)
}

func TestGetPITaskDetectsCycle(t *testing.T) {
	a, b := task.New(1), task.New(2)
	a.RequestedResource = &task.Resource{ID: 1, Owner: b}
	b.RequestedResource = &task.Resource{ID: 2, Owner: a}
	assert.Nil(t, GetPITask(a))
}

func TestMarkDeadlocksOnCycle(t *testing.T) {
	a, b, c := task.New(1), task.New(2), task.New(3)
	a.RequestedResource = &task.Resource{ID: 1, Owner: b}
	b.RequestedResource = &task.Resource{ID: 2, Owner: c}
	c.RequestedResource = &task.Resource{ID: 3, Owner: a}

	assert.True(t, MarkDeadlocks(a))
	assert.True(t, a.HasFlag(task.FlagDeadlocked))
	assert.True(t, b.HasFlag(task.FlagDeadlocked))
	assert.True(t, c.HasFlag(task.FlagDeadlocked))
}

func TestMarkDeadlocksNoCycle(t *testing.T) {
	a, b := task.New(1), task.New(2)
	a.RequestedResource = &task.Resource{ID: 1, Owner: b}
	assert.False(t, MarkDeadlocks(a))
	assert.False(t, a.HasFlag(task.FlagDeadlocked))
}

func TestAbortDeadlockPicksWorstIVD(t *testing.T) {
	a, b, c := task.New(1), task.New(2), task.New(3)
	a.LocalIVD, b.LocalIVD, c.LocalIVD = 10, 50, 20
	a.RequestedResource = &task.Resource{ID: 1, Owner: b}
	b.RequestedResource = &task.Resource{ID: 2, Owner: c}
	c.RequestedResource = &task.Resource{ID: 3, Owner: a}

	MarkDeadlocks(a)
	plane := newFakePlane()
	counters := &fakeCounters{}
	worst := AbortDeadlock(a, plane, counters, nil)
	assert.Same(t, b, worst)
	assert.True(t, worst.HasFlag(task.FlagAborted))
	assert.False(t, a.HasFlag(task.FlagDeadlocked))
	assert.False(t, b.HasFlag(task.FlagDeadlocked))
	assert.False(t, c.HasFlag(task.FlagDeadlocked))
	assert.Equal(t, 1, counters.aborts)
}
