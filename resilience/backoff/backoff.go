package backoff

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"
)

const maxShift = 62

// Exponential calculates base * 2^attempt with overflow protection, capped
// at maxDelay when maxDelay is positive. Negative attempts are treated as 0.
func Exponential(base time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}

	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1 << attempt)

	delay := time.Duration(math.MaxInt64)
	if int64(base) <= math.MaxInt64/multiplier {
		delay = time.Duration(int64(base) * multiplier)
	}

	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}

	return delay
}

// Jitter returns a random duration in [0, fraction*delay]. Uses crypto/rand;
// on randomness failure it falls back to the midpoint of the range so retry
// scheduling never stalls. Zero or negative inputs yield 0.
func Jitter(delay time.Duration, fraction float64) time.Duration {
	if delay <= 0 || fraction <= 0 {
		return 0
	}

	span := int64(float64(delay) * fraction)
	if span <= 0 {
		return 0
	}

	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return time.Duration(span / 2)
	}

	return time.Duration(n.Int64())
}

// Delay combines capped exponential backoff with proportional jitter:
// min(base * 2^attempt, maxDelay) + uniform(0, fraction*that).
func Delay(base time.Duration, attempt int, maxDelay time.Duration, jitterFraction float64) time.Duration {
	exponentialDelay := Exponential(base, attempt, maxDelay)

	return exponentialDelay + Jitter(exponentialDelay, jitterFraction)
}

// WaitContext sleeps for the specified duration but respects context
// cancellation. Returns nil if the sleep completes, or an error if the
// context is cancelled first. Returns immediately for non-positive durations.
func WaitContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
