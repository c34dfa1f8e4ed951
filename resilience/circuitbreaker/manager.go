package circuitbreaker

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/nexline-io/lib-resilience/resilience"
	"github.com/nexline-io/lib-resilience/resilience/log"
	"github.com/nexline-io/lib-resilience/resilience/runtime"
)

// Registry manages one breaker per dependency name. Create it once at
// process start and pass it into every component that guards external calls.
type Registry struct {
	breakers  map[string]*gobreaker.CircuitBreaker
	configs   map[string]Config
	listeners []StateChangeListener
	mu        sync.RWMutex
	logger    log.Logger
}

// NewRegistry creates a breaker registry. A nil logger is replaced with a
// no-op logger.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNone()
	}

	return &Registry{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		configs:   make(map[string]Config),
		listeners: make([]StateChangeListener, 0),
		logger:    logger,
	}
}

// Execute runs fn through the breaker for dependency, creating the breaker
// with config on first use. config binds at creation only: later calls for
// the same dependency reuse the existing breaker and a differing config is
// ignored with a warning (breakers are never destroyed, only Reset). While
// the breaker is open, or while the single half-open trial is already in
// flight, fn is never invoked and the error is a resilience.Error of kind
// dependency_unavailable.
func (r *Registry) Execute(dependency string, config Config, fn func() (any, error)) (any, error) {
	breaker := r.getOrCreate(dependency, config)

	result, err := breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			r.logger.Warnf("circuit breaker [%s] is open - request rejected immediately", dependency)

			return nil, resilience.DependencyUnavailableError(dependency, err)
		}

		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.logger.Warnf("circuit breaker [%s] is half-open with a trial in flight - request rejected", dependency)

			return nil, resilience.DependencyUnavailableError(dependency, err)
		}
	}

	return result, err
}

// GetState returns the current state, or StateUnknown for a dependency that
// has never been called.
func (r *Registry) GetState(dependency string) State {
	r.mu.RLock()
	breaker, exists := r.breakers[dependency]
	r.mu.RUnlock()

	if !exists {
		return StateUnknown
	}

	return fromGobreakerState(breaker.State())
}

// GetCounts returns the current counters for a breaker; zero counts for an
// unknown dependency.
func (r *Registry) GetCounts(dependency string) Counts {
	r.mu.RLock()
	breaker, exists := r.breakers[dependency]
	r.mu.RUnlock()

	if !exists {
		return Counts{}
	}

	counts := breaker.Counts()

	return Counts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

// IsHealthy reports whether the breaker is closed. Open and half-open both
// count as unhealthy until a trial succeeds.
func (r *Registry) IsHealthy(dependency string) bool {
	return r.GetState(dependency) == StateClosed
}

// Names lists every dependency with a registered breaker.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}

	return names
}

// Reset forces the breaker for dependency back to closed with zero failures.
// Operator-triggered recovery; not called by normal traffic.
func (r *Registry) Reset(dependency string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetLocked(dependency)
}

// ResetAll resets every registered breaker.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for dependency := range r.breakers {
		r.resetLocked(dependency)
	}
}

// resetLocked recreates the breaker with its stored config. gobreaker has no
// in-place reset, so replacement is the reset.
func (r *Registry) resetLocked(dependency string) {
	if _, exists := r.breakers[dependency]; !exists {
		return
	}

	config, configExists := r.configs[dependency]
	if !configExists {
		config = DefaultConfig()
	}

	r.logger.Infof("resetting circuit breaker for dependency: %s", dependency)
	r.breakers[dependency] = gobreaker.NewCircuitBreaker(r.settings(dependency, config))
}

// RegisterStateChangeListener registers a listener for state change
// notifications. Listeners run on their own goroutines with panic isolation.
func (r *Registry) RegisterStateChangeListener(listener StateChangeListener) {
	if listener == nil {
		r.logger.Warnf("attempted to register a nil state change listener")

		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, listener)
}

func (r *Registry) getOrCreate(dependency string, config Config) *gobreaker.CircuitBreaker {
	r.mu.RLock()
	breaker, exists := r.breakers[dependency]
	stored := r.configs[dependency]
	r.mu.RUnlock()

	if exists {
		if normalized := config.normalize(); normalized != stored {
			r.logger.Warnf("circuit breaker [%s] already exists - ignoring differing config (active: threshold=%d cooldown=%v)",
				dependency, stored.FailureThreshold, stored.Cooldown)
		}

		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock.
	if breaker, exists = r.breakers[dependency]; exists {
		return breaker
	}

	config = config.normalize()

	breaker = gobreaker.NewCircuitBreaker(r.settings(dependency, config))
	r.breakers[dependency] = breaker
	r.configs[dependency] = config

	r.logger.Infof("created circuit breaker for dependency: %s", dependency)

	return breaker
}

func (r *Registry) settings(dependency string, config Config) gobreaker.Settings {
	return gobreaker.Settings{
		Name: "dependency-" + dependency,
		// Exactly one trial call may pass while half-open; concurrent calls
		// fail fast as if still open.
		MaxRequests: 1,
		Timeout:     config.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			r.handleStateChange(dependency, from, to)
		},
	}
}

func (r *Registry) handleStateChange(dependency string, from gobreaker.State, to gobreaker.State) {
	r.logger.Warnf("circuit breaker [%s] state changed: %s -> %s", dependency, from.String(), to.String())

	fromState := fromGobreakerState(from)
	toState := fromGobreakerState(to)

	r.mu.RLock()
	listeners := make([]StateChangeListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, listener := range listeners {
		l := listener

		// Notify on a goroutine so a slow or panicking listener cannot block
		// breaker transitions.
		runtime.SafeGo(r.logger, "circuitbreaker.listener", func() {
			l.OnStateChange(dependency, fromState, toState)
		})
	}
}
