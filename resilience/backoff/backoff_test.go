//go:build unit

package backoff

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponential(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		attempt  int
		maxDelay time.Duration
		expected time.Duration
	}{
		{name: "attempt zero", base: 100 * time.Millisecond, attempt: 0, expected: 100 * time.Millisecond},
		{name: "attempt three", base: 100 * time.Millisecond, attempt: 3, expected: 800 * time.Millisecond},
		{name: "negative attempt treated as zero", base: time.Second, attempt: -5, expected: time.Second},
		{name: "capped at max", base: time.Second, attempt: 10, maxDelay: 30 * time.Second, expected: 30 * time.Second},
		{name: "below cap unchanged", base: time.Second, attempt: 2, maxDelay: 30 * time.Second, expected: 4 * time.Second},
		{name: "zero base", base: 0, attempt: 5, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Exponential(tt.base, tt.attempt, tt.maxDelay))
		})
	}
}

func TestExponentialOverflowProtection(t *testing.T) {
	delay := Exponential(time.Hour, 100, 0)
	assert.Equal(t, time.Duration(math.MaxInt64), delay)

	capped := Exponential(time.Hour, 100, time.Minute)
	assert.Equal(t, time.Minute, capped)
}

func TestJitterBounds(t *testing.T) {
	delay := 10 * time.Second
	upper := time.Duration(float64(delay) * 0.3)

	for i := 0; i < 200; i++ {
		j := Jitter(delay, 0.3)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.LessOrEqual(t, j, upper)
	}
}

func TestJitterDegenerateInputs(t *testing.T) {
	assert.Equal(t, time.Duration(0), Jitter(0, 0.3))
	assert.Equal(t, time.Duration(0), Jitter(-time.Second, 0.3))
	assert.Equal(t, time.Duration(0), Jitter(time.Second, 0))
	assert.Equal(t, time.Duration(0), Jitter(time.Second, -1))
}

func TestDelayStaysWithinJitteredEnvelope(t *testing.T) {
	base := 200 * time.Millisecond
	maxDelay := 5 * time.Second

	for attempt := 0; attempt < 8; attempt++ {
		expected := Exponential(base, attempt, maxDelay)
		upper := expected + time.Duration(float64(expected)*0.3)

		got := Delay(base, attempt, maxDelay, 0.3)
		assert.GreaterOrEqual(t, got, expected, "attempt %d", attempt)
		assert.LessOrEqual(t, got, upper, "attempt %d", attempt)
	}
}

func TestWaitContextCompletes(t *testing.T) {
	start := time.Now()
	err := WaitContext(context.Background(), 20*time.Millisecond)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitContext(ctx, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitContextZeroDuration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Non-positive durations return immediately even on a dead context.
	assert.NoError(t, WaitContext(ctx, 0))
	assert.NoError(t, WaitContext(ctx, -time.Second))
}
