package dedupe

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexline-io/lib-resilience/resilience/log"
)

func TestKeyDeterministic(t *testing.T) {
	first := Key("email", "ops@example.com", "hello")
	second := Key("email", "ops@example.com", "hello")
	different := Key("email", "ops@example.com", "hello!")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, different)

	// Separator prevents ambiguous concatenation.
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestConcurrentCallsExecuteOnce(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	var executions atomic.Int32

	release := make(chan struct{})
	op := func(ctx context.Context) (any, error) {
		executions.Add(1)
		<-release

		return "sent", nil
	}

	const callers = 25

	var wg sync.WaitGroup

	results := make([]any, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()

			results[idx], errs[idx] = coalescer.Do(context.Background(), "k", time.Second, op)
		}(i)
	}

	// Let every caller attach before releasing the executor.
	assert.Eventually(t, func() bool {
		return executions.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), executions.Load())

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "sent", results[i])
	}
}

func TestSettledResultServedWithinWindow(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	var executions atomic.Int32

	op := func(ctx context.Context) (any, error) {
		executions.Add(1)

		return "first", nil
	}

	result, err := coalescer.Do(context.Background(), "k", 300*time.Millisecond, op)
	require.NoError(t, err)
	assert.Equal(t, "first", result)

	// Inside the window: cached, no second execution.
	result, err = coalescer.Do(context.Background(), "k", 300*time.Millisecond, op)
	require.NoError(t, err)
	assert.Equal(t, "first", result)
	assert.Equal(t, int32(1), executions.Load())

	// Past the window: fresh execution.
	time.Sleep(350 * time.Millisecond)

	_, err = coalescer.Do(context.Background(), "k", 300*time.Millisecond, op)
	require.NoError(t, err)
	assert.Equal(t, int32(2), executions.Load())
}

func TestErrorsAreSharedAndSuppressed(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	opErr := errors.New("smtp unavailable")

	var executions atomic.Int32

	op := func(ctx context.Context) (any, error) {
		executions.Add(1)

		return nil, opErr
	}

	_, err := coalescer.Do(context.Background(), "k", 500*time.Millisecond, op)
	assert.ErrorIs(t, err, opErr)

	// The failure is cached too: an immediate repeat must not re-invoke op.
	_, err = coalescer.Do(context.Background(), "k", 500*time.Millisecond, op)
	assert.ErrorIs(t, err, opErr)
	assert.Equal(t, int32(1), executions.Load())
}

func TestWaiterCancellationLeavesExecutionAlone(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	release := make(chan struct{})
	op := func(ctx context.Context) (any, error) {
		<-release

		return "late result", nil
	}

	started := make(chan struct{})

	go func() {
		close(started)

		_, _ = coalescer.Do(context.Background(), "k", time.Second, op)
	}()

	<-started
	time.Sleep(20 * time.Millisecond)

	// Second caller gives up quickly.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := coalescer.Do(ctx, "k", time.Second, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The shared execution still settles and the cache serves it.
	close(release)

	result, err := coalescer.Do(context.Background(), "k", time.Second, op)
	require.NoError(t, err)
	assert.Equal(t, "late result", result)
}

func TestPanicSettlesAsError(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	op := func(ctx context.Context) (any, error) {
		panic("adapter blew up")
	}

	_, err := coalescer.Do(context.Background(), "k", 100*time.Millisecond, op)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// Waiters inside the window share the panic-derived error.
	_, cachedErr := coalescer.Do(context.Background(), "k", 100*time.Millisecond, op)
	assert.Equal(t, err.Error(), cachedErr.Error())
}

func TestZeroTTLDisablesTrailingSuppression(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	var executions atomic.Int32

	op := func(ctx context.Context) (any, error) {
		return executions.Add(1), nil
	}

	first, err := coalescer.Do(context.Background(), "k", 0, op)
	require.NoError(t, err)

	second, err := coalescer.Do(context.Background(), "k", 0, op)
	require.NoError(t, err)

	assert.Equal(t, int32(1), first)
	assert.Equal(t, int32(2), second)
	assert.Equal(t, 0, coalescer.Len())
}

// entryCount reads the raw registry size, expired entries included.
func entryCount(c *Coalescer) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func TestExpiredEntriesReclaimedWithoutRepeatCalls(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	op := func(ctx context.Context) (any, error) { return "ok", nil }

	// Unique keys never recur, so reclamation cannot rely on a later call
	// with the same key.
	const keys = 50

	for i := 0; i < keys; i++ {
		_, err := coalescer.Do(context.Background(), Key("unique", strconv.Itoa(i)), 20*time.Millisecond, op)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return entryCount(coalescer) == 0
	}, 2*time.Second, 5*time.Millisecond, "settled entries must be reclaimed once their window elapses")
}

func TestNeverSettlingEntryExpiresAtCreationBound(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	var executions atomic.Int32

	release := make(chan struct{})
	defer close(release)

	stuck := func(ctx context.Context) (any, error) {
		executions.Add(1)
		<-release

		return nil, nil
	}

	// The executor caller abandons its wait; the execution stays blocked.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := coalescer.Do(ctx, "k", 50*time.Millisecond, stuck)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(1), executions.Load())

	// Past createdAt+ttl the dead entry is gone even though it never settled.
	assert.Eventually(t, func() bool {
		return entryCount(coalescer) == 0
	}, 2*time.Second, 5*time.Millisecond)

	// The same key now starts a fresh execution.
	quick := func(ctx context.Context) (any, error) {
		executions.Add(1)

		return "recovered", nil
	}

	result, err := coalescer.Do(context.Background(), "k", 50*time.Millisecond, quick)
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, int32(2), executions.Load())
}

func TestNilOperationRejected(t *testing.T) {
	coalescer := New(nil)

	_, err := coalescer.Do(context.Background(), "k", time.Second, nil)
	assert.ErrorIs(t, err, ErrNilOperation)
}

func TestStats(t *testing.T) {
	coalescer := New(&log.NoneLogger{})

	op := func(ctx context.Context) (any, error) { return "ok", nil }

	_, _ = coalescer.Do(context.Background(), "a", time.Second, op)
	_, _ = coalescer.Do(context.Background(), "a", time.Second, op)
	_, _ = coalescer.Do(context.Background(), "b", time.Second, op)

	stats := coalescer.Stats()
	assert.Equal(t, uint64(2), stats.Executions)
	assert.Equal(t, uint64(1), stats.CacheHits)
	assert.Equal(t, 2, coalescer.Len())
}
