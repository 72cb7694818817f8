package chronostime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddCarries(t *testing.T) {
	a := Timespec{Sec: 1, Nsec: 700_000_000}
	b := Timespec{Sec: 2, Nsec: 500_000_000}
	got := Add(a, b)
	assert.Equal(t, Timespec{Sec: 4, Nsec: 200_000_000}, got)
}

func TestSubBorrows(t *testing.T) {
	a := Timespec{Sec: 5, Nsec: 200_000_000}
	b := Timespec{Sec: 2, Nsec: 700_000_000}
	got := Sub(a, b)
	// 5.2 - 2.7 = 2.5, requiring a borrow since 200ms < 700ms.
	assert.Equal(t, Timespec{Sec: 2, Nsec: 500_000_000}, got)
}

func TestSubBorrowIsNotTheOriginalBuggyVariant(t *testing.T) {
	// The buggy original computed nsec = BILLION - nsec on borrow instead
	// of nsec += BILLION; for this input the two give different results.
	a := Timespec{Sec: 1, Nsec: 100_000_000}
	b := Timespec{Sec: 0, Nsec: 400_000_000}
	got := Sub(a, b)
	// Correct: 1.1 - 0.4 = 0.7
	assert.Equal(t, Timespec{Sec: 0, Nsec: 700_000_000}, got)
	// The buggy formula would have produced nsec = BILLION - (100e6-400e6) = BILLION - (-300e6) = 1.3e9, clearly wrong/unnormalized.
	buggyNsec := billion - (a.Nsec - b.Nsec)
	assert.NotEqual(t, got.Nsec, buggyNsec)
}

func TestCompare(t *testing.T) {
	a := Timespec{Sec: 1, Nsec: 0}
	b := Timespec{Sec: 1, Nsec: 1}
	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 1, Compare(b, a))
	assert.Equal(t, 0, Compare(a, a))
	assert.True(t, Before(a, b))
}

func TestIsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, Timespec{Sec: 1}.IsZero())
}

func TestNanosRoundTrip(t *testing.T) {
	ts := Timespec{Sec: 3, Nsec: 250_000_000}
	n := Nanos(ts)
	assert.Equal(t, int64(3_250_000_000), n)
	assert.Equal(t, ts, FromNanos(n))
}

func TestFromNanosNegative(t *testing.T) {
	got := FromNanos(-1_500_000_000)
	assert.Equal(t, Timespec{Sec: -2, Nsec: 500_000_000}, got)
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 3, Min(3, 5))
	assert.Equal(t, 5, Max(3, 5))
}

func TestNowAdvances(t *testing.T) {
	a := Now()
	b := Now()
	assert.False(t, Before(b, a))
}
