package mutexreg

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtrts/chronos"
	"github.com/vtrts/chronos/task"
)

func TestInitRequestRelease(t *testing.T) {
	r := NewRegistry()
	id := r.Init(1)

	owner := task.New(100)
	require.NoError(t, r.Request(context.Background(), 1, id, owner))
	require.NoError(t, r.Release(1, id, owner))
}

func TestReentrantRequestSucceeds(t *testing.T) {
	r := NewRegistry()
	id := r.Init(1)
	owner := task.New(100)
	require.NoError(t, r.Request(context.Background(), 1, id, owner))
	require.NoError(t, r.Request(context.Background(), 1, id, owner))
}

func TestReleaseByNonOwnerFails(t *testing.T) {
	r := NewRegistry()
	id := r.Init(1)
	owner := task.New(100)
	other := task.New(200)
	require.NoError(t, r.Request(context.Background(), 1, id, owner))
	err := r.Release(1, id, other)
	require.Error(t, err)
	assert.ErrorIs(t, err, chronos.ErrNotOwner)
}

func TestDestroyWhileHeldFails(t *testing.T) {
	r := NewRegistry()
	id := r.Init(1)
	owner := task.New(100)
	require.NoError(t, r.Request(context.Background(), 1, id, owner))
	err := r.Destroy(1, id)
	require.Error(t, err)
	require.NoError(t, r.Release(1, id, owner))
	require.NoError(t, r.Destroy(1, id))
}

func TestStaleIDAfterDestroyIsRejected(t *testing.T) {
	r := NewRegistry()
	id := r.Init(1)
	require.NoError(t, r.Destroy(1, id))

	owner := task.New(1)
	err := r.Request(context.Background(), 1, id, owner)
	require.Error(t, err)
	assert.ErrorIs(t, err, chronos.ErrInvalid)
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	r := NewRegistry()
	id1 := r.Init(1)
	require.NoError(t, r.Destroy(1, id1))
	id2 := r.Init(1)
	assert.Equal(t, id1.Slot, id2.Slot)
	assert.Greater(t, id2.Generation, id1.Generation)
}

func TestRequestBlocksUntilRelease(t *testing.T) {
	r := NewRegistry()
	id := r.Init(1)
	owner := task.New(100)
	waiter := task.New(200)
	require.NoError(t, r.Request(context.Background(), 1, id, owner))

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := make(chan struct{})
	go func() {
		defer wg.Done()
		require.NoError(t, r.Request(context.Background(), 1, id, waiter))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired before release")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, r.Release(1, id, owner))
	wg.Wait()
	require.NoError(t, r.Release(1, id, waiter))
}

func TestRequestReturnsOwnerDeadWhenOwnerAborted(t *testing.T) {
	r := NewRegistry()
	id := r.Init(1)
	owner := task.New(100)
	require.NoError(t, r.Request(context.Background(), 1, id, owner))
	owner.SetFlag(task.FlagAborted)

	waiter := task.New(200)
	err := r.Request(context.Background(), 1, id, waiter)
	require.Error(t, err)
	assert.ErrorIs(t, err, chronos.ErrOwnerDead)
}

func TestRequestRespectsContextCancellation(t *testing.T) {
	r := NewRegistry()
	id := r.Init(1)
	owner := task.New(100)
	require.NoError(t, r.Request(context.Background(), 1, id, owner))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter := task.New(200)
	err := r.Request(ctx, 1, id, waiter)
	require.Error(t, err)
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	processes, mutexes := r.Stats()
	assert.Equal(t, 0, processes)
	assert.Equal(t, 0, mutexes)

	r.Init(1)
	r.Init(1)
	r.Init(2)
	processes, mutexes = r.Stats()
	assert.Equal(t, 2, processes)
	assert.Equal(t, 3, mutexes)
}
