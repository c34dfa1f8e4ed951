package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexline-io/lib-resilience/resilience/log"
)

// ErrNilOperation indicates that a nil operation function was passed to Do.
var ErrNilOperation = errors.New("dedupe: operation must not be nil")

// Key derives a deterministic fingerprint from an operation's semantically
// relevant inputs. Equal inputs always produce equal keys.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))

	return hex.EncodeToString(sum[:])
}

// Stats are monotonic counters describing coalescing effectiveness.
type Stats struct {
	Executions uint64 // operations actually run
	Coalesced  uint64 // callers attached to an in-flight execution
	CacheHits  uint64 // callers served a settled result inside the window
}

// entry tracks one coalescing window for a key. The executor closes done
// exactly once after recording the settled result.
type entry struct {
	done      chan struct{}
	result    any
	err       error
	createdAt time.Time
	settledAt time.Time
	ttl       time.Duration

	// safetyTimer evicts an entry whose executor never settles once the
	// window measured from createdAt elapses. Stopped on settle.
	safetyTimer *time.Timer
}

// expired reports whether the trailing-suppression window has elapsed.
// The window is anchored at settle time; entries that never settle fall back
// to creation time as a safety bound.
func (e *entry) expired(now time.Time) bool {
	settled := false

	select {
	case <-e.done:
		settled = true
	default:
	}

	if settled {
		return now.Sub(e.settledAt) >= e.ttl
	}

	return now.Sub(e.createdAt) >= e.ttl
}

// Coalescer deduplicates concurrent identical operations keyed by an opaque
// fingerprint. It owns the pending-entry registry; a timer armed at settle
// time (or at creation, for entries that never settle) evicts each entry
// once its window elapses, with a lazy check in admit as backstop.
type Coalescer struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  log.Logger

	executions atomic.Uint64
	coalesced  atomic.Uint64
	cacheHits  atomic.Uint64
}

// New creates a Coalescer. A nil logger is replaced with a no-op logger.
func New(logger log.Logger) *Coalescer {
	if logger == nil {
		logger = log.NewNone()
	}

	return &Coalescer{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Do runs op under the coalescing contract for key:
//
//   - no live entry: op starts executing and this caller waits for it;
//   - entry still running: this caller attaches as a waiter;
//   - entry settled inside the window: the cached result (or error) returns
//     immediately without re-invoking op.
//
// Errors settle the entry exactly like results, so a known-bad operation is
// also suppressed for the remainder of the window. A caller whose ctx ends
// stops waiting, but the execution, other waiters, and the cache are
// unaffected.
func (c *Coalescer) Do(ctx context.Context, key string, ttl time.Duration, op func(context.Context) (any, error)) (any, error) {
	if op == nil {
		return nil, ErrNilOperation
	}

	if ctx == nil {
		ctx = context.Background()
	}

	pending, isExecutor := c.admit(ctx, key, ttl, op)
	if !isExecutor {
		select {
		case <-pending.done:
			c.cacheHits.Add(1)

			return pending.result, pending.err
		default:
		}

		c.coalesced.Add(1)
		c.logger.Debugf("coalescing duplicate operation key=%s", key)
	}

	select {
	case <-pending.done:
		return pending.result, pending.err
	case <-ctx.Done():
		return nil, fmt.Errorf("abandoned coalesced wait: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the coalescing counters.
func (c *Coalescer) Stats() Stats {
	return Stats{
		Executions: c.executions.Load(),
		Coalesced:  c.coalesced.Load(),
		CacheHits:  c.cacheHits.Load(),
	}
}

// Len reports the number of live entries (settled entries inside their
// window included).
func (c *Coalescer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	live := 0

	for _, e := range c.entries {
		if !e.expired(now) {
			live++
		}
	}

	return live
}

// admit returns the entry for key, creating one and starting the executor on
// a miss. The second return value reports whether this caller is the
// executor.
func (c *Coalescer) admit(ctx context.Context, key string, ttl time.Duration, op func(context.Context) (any, error)) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if existing, ok := c.entries[key]; ok {
		if !existing.expired(now) {
			return existing, false
		}

		delete(c.entries, key)
	}

	pending := &entry{
		done:      make(chan struct{}),
		createdAt: now,
		ttl:       ttl,
	}
	c.entries[key] = pending

	if ttl > 0 {
		pending.safetyTimer = time.AfterFunc(ttl, func() {
			c.evictUnsettled(key, pending)
		})
	}

	c.executions.Add(1)

	// The execution outlives any single caller: detach cancellation but keep
	// context values so one waiter's timeout cannot abort the shared work.
	execCtx := context.WithoutCancel(ctx)

	go c.execute(execCtx, key, pending, op)

	return pending, true
}

func (c *Coalescer) execute(ctx context.Context, key string, pending *entry, op func(context.Context) (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			pending.err = fmt.Errorf("dedupe: operation panicked: %v", r)
			c.logger.Errorf("coalesced operation panicked key=%s: %v", key, r)
		}

		c.settle(key, pending)
	}()

	pending.result, pending.err = op(ctx)
}

func (c *Coalescer) settle(key string, pending *entry) {
	c.mu.Lock()
	pending.settledAt = time.Now()

	if pending.safetyTimer != nil {
		pending.safetyTimer.Stop()
	}

	close(pending.done)
	c.mu.Unlock()

	if pending.ttl <= 0 {
		// No trailing suppression requested: drop the entry right away so the
		// next call starts fresh.
		c.evict(key, pending)

		return
	}

	// Re-anchor eviction at settle time so the suppression window covers the
	// full ttl past the settled result, then reclaim the entry even if the
	// key never recurs.
	time.AfterFunc(pending.ttl, func() {
		c.evict(key, pending)
	})
}

func (c *Coalescer) evict(key string, pending *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.entries[key]; ok && current == pending {
		delete(c.entries, key)
	}
}

// evictUnsettled drops an entry at the creation-time safety bound, but only
// while its executor has not settled; settled entries are owned by the
// settle-time timer.
func (c *Coalescer) evictUnsettled(key string, pending *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-pending.done:
		return
	default:
	}

	if current, ok := c.entries[key]; ok && current == pending {
		delete(c.entries, key)
		c.logger.Warnf("evicted never-settled operation entry key=%s after safety window", key)
	}
}
