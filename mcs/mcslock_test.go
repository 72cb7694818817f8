package mcs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockSucceedsOnlyWhenFree(t *testing.T) {
	var l Lock
	var n1, n2 Node
	require.True(t, l.TryLock(&n1))
	assert.False(t, l.TryLock(&n2))
	l.Unlock(&n1)
	assert.True(t, l.TryLock(&n2))
}

func TestIsLocked(t *testing.T) {
	var l Lock
	var n Node
	assert.False(t, l.IsLocked())
	l.Lock(&n)
	assert.True(t, l.IsLocked())
	l.Unlock(&n)
	assert.False(t, l.IsLocked())
}

func TestMutualExclusionUnderContention(t *testing.T) {
	var l Lock
	counter := 0
	const goroutines = 32
	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			var node Node
			for j := 0; j < iterations; j++ {
				l.Lock(&node)
				counter++
				l.Unlock(&node)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines*iterations, counter)
}
