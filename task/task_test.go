package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTaskDefaults(t *testing.T) {
	tk := New(42)
	assert.Equal(t, 42, tk.PID)
	assert.Equal(t, -1, tk.CPU)
	assert.True(t, tk.SegJustStarted())
}

func TestFlagsSetClearHas(t *testing.T) {
	tk := New(1)
	tk.SetFlag(FlagScheduled)
	assert.True(t, tk.HasFlag(FlagScheduled))
	tk.SetFlag(FlagAborted)
	assert.True(t, tk.HasFlag(FlagScheduled | FlagAborted))
	tk.ClearFlag(FlagScheduled)
	assert.False(t, tk.HasFlag(FlagScheduled))
	assert.True(t, tk.HasFlag(FlagAborted))
}

func TestEffectiveDeadlineFallsBackToAbortInfoUnderHUA(t *testing.T) {
	tk := New(1)
	tk.Deadline.Sec = 10
	tk.MaxUtil = 5
	tk.AbortInfo.Deadline.Sec = 99
	tk.AbortInfo.MaxUtil = 1

	assert.Equal(t, int64(10), tk.EffectiveDeadline().Sec)
	assert.Equal(t, int64(5), tk.EffectiveMaxUtil())

	tk.SetFlag(FlagAborted | FlagHUA)
	assert.Equal(t, int64(99), tk.EffectiveDeadline().Sec)
	assert.Equal(t, int64(1), tk.EffectiveMaxUtil())
}

func TestPolicyIDIsGlobal(t *testing.T) {
	assert.False(t, PolicyFIFO.IsGlobal())
	assert.False(t, PolicyRMAICPP.IsGlobal())
	assert.True(t, PolicyGFIFO.IsGlobal())
	assert.True(t, PolicyGRMA.IsGlobal())
}
