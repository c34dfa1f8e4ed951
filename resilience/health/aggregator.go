package health

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/nexline-io/lib-resilience/resilience"
	"github.com/nexline-io/lib-resilience/resilience/log"
)

// Probe is one dependency's health check.
type Probe func(ctx context.Context) resilience.ProbeResult

// Record is the latest health observation for one dependency. Records are
// overwritten on every probe; only the most recent value is retained.
type Record struct {
	resilience.ProbeResult

	CheckedAt time.Time `json:"checkedAt"`
}

// ReadinessReport is computed on demand from the current record set.
// Blockers lists every unhealthy required dependency, not just the first.
type ReadinessReport struct {
	Ready    bool     `json:"ready"`
	Blockers []string `json:"blockers,omitempty"`
}

// Aggregator tracks per-dependency health. Probes run concurrently, each
// under an individual timeout, so one hanging dependency cannot stall the
// aggregate report.
type Aggregator struct {
	logger log.Logger

	mu      sync.RWMutex
	probes  map[string]Probe
	records map[string]Record
}

// NewAggregator creates an empty health aggregator. A nil logger is replaced
// with a no-op logger.
func NewAggregator(logger log.Logger) *Aggregator {
	if logger == nil {
		logger = log.NewNone()
	}

	return &Aggregator{
		logger:  logger,
		probes:  make(map[string]Probe),
		records: make(map[string]Record),
	}
}

// RegisterProbe adds or replaces the probe for a dependency.
func (a *Aggregator) RegisterProbe(name string, probe Probe) {
	if probe == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.probes[name] = probe
	a.logger.Infof("registered health probe for dependency: %s", name)
}

// RegisterAdapter registers an adapter's ProbeHealth under its name.
func (a *Aggregator) RegisterAdapter(adapter resilience.Adapter) {
	if adapter == nil {
		return
	}

	a.RegisterProbe(adapter.Name(), adapter.ProbeHealth)
}

// PullAll probes every registered dependency concurrently and waits for all
// of them to complete or time out before returning the combined map. A probe
// that exceeds perProbeTimeout is recorded as unhealthy with message
// "timeout".
func (a *Aggregator) PullAll(ctx context.Context, perProbeTimeout time.Duration) map[string]Record {
	a.mu.RLock()
	probes := make(map[string]Probe, len(a.probes))
	maps.Copy(probes, a.probes)
	a.mu.RUnlock()

	results := make(map[string]Record, len(probes))

	var (
		resultsMu sync.Mutex
		wg        sync.WaitGroup
	)

	for name, probe := range probes {
		wg.Add(1)

		go func(name string, probe Probe) {
			defer wg.Done()

			record := a.runProbe(ctx, name, probe, perProbeTimeout)

			resultsMu.Lock()
			results[name] = record
			resultsMu.Unlock()
		}(name, probe)
	}

	wg.Wait()

	for name, record := range results {
		a.store(name, record)
	}

	return results
}

// Pull probes a single dependency and refreshes its record. The second
// return value reports whether a probe is registered under name.
func (a *Aggregator) Pull(ctx context.Context, name string, perProbeTimeout time.Duration) (Record, bool) {
	a.mu.RLock()
	probe, ok := a.probes[name]
	a.mu.RUnlock()

	if !ok {
		return Record{}, false
	}

	record := a.runProbe(ctx, name, probe, perProbeTimeout)
	a.store(name, record)

	return record, true
}

// Records returns a snapshot of the cached records without re-probing.
func (a *Aggregator) Records() map[string]Record {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snapshot := make(map[string]Record, len(a.records))
	maps.Copy(snapshot, a.records)

	return snapshot
}

// Readiness computes the readiness gate from the cached records: ready iff
// every required dependency has a healthy record. Blockers lists all
// unhealthy or unknown required dependencies, sorted for stable output.
func (a *Aggregator) Readiness(required ...string) ReadinessReport {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var blockers []string

	for _, name := range required {
		record, ok := a.records[name]
		if !ok || !record.Healthy {
			blockers = append(blockers, name)
		}
	}

	sort.Strings(blockers)

	return ReadinessReport{Ready: len(blockers) == 0, Blockers: blockers}
}

// runProbe invokes one probe under its own timeout, isolating panics and
// hangs from the aggregate.
func (a *Aggregator) runProbe(ctx context.Context, name string, probe Probe, timeout time.Duration) Record {
	if ctx == nil {
		ctx = context.Background()
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan resilience.ProbeResult, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Errorf("health probe for %s panicked: %v", name, r)

				done <- resilience.ProbeResult{Healthy: false, Message: "probe panicked"}
			}
		}()

		done <- probe(probeCtx)
	}()

	select {
	case result := <-done:
		if result.Latency == 0 {
			result.Latency = time.Since(start)
		}

		return Record{ProbeResult: result, CheckedAt: time.Now()}
	case <-probeCtx.Done():
		// The goroutine may still be running; its late result is dropped
		// through the buffered channel.
		a.logger.Warnf("health probe for %s timed out after %v", name, timeout)

		return Record{
			ProbeResult: resilience.ProbeResult{
				Healthy: false,
				Mode:    a.lastKnownMode(name),
				Latency: time.Since(start),
				Message: "timeout",
			},
			CheckedAt: time.Now(),
		}
	}
}

// store writes a record, keeping CheckedAt monotonically non-decreasing per
// dependency when refreshes race.
func (a *Aggregator) store(name string, record Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.records[name]; ok && existing.CheckedAt.After(record.CheckedAt) {
		return
	}

	a.records[name] = record
}

func (a *Aggregator) lastKnownMode(name string) resilience.Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.records[name].Mode
}
