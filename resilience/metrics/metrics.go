package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexline-io/lib-resilience/resilience/circuitbreaker"
	"github.com/nexline-io/lib-resilience/resilience/dedupe"
	"github.com/nexline-io/lib-resilience/resilience/delivery"
)

const namespace = "resilience"

// breaker states exported as a numeric gauge
const (
	gaugeClosed   = 0
	gaugeHalfOpen = 1
	gaugeOpen     = 2
)

// Metrics holds the prometheus instruments for the resilience core. It
// implements delivery.AttemptObserver and circuitbreaker.StateChangeListener
// so it can be plugged straight into both registries.
type Metrics struct {
	deliveryAttempts *prometheus.CounterVec
	deliveryBackoff  *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
	breakerChanges   *prometheus.CounterVec
}

// New creates and registers the instruments on registerer. Pass
// prometheus.DefaultRegisterer for the process-wide registry or a fresh
// registry in tests.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "confirm_attempts_total",
			Help:      "Confirm attempts by dependency and outcome.",
		}, []string{"dependency", "outcome"}),
		deliveryBackoff: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "backoff_seconds",
			Help:      "Wait applied before each confirm attempt, jitter included.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"dependency"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Breaker state by dependency (0 closed, 1 half-open, 2 open).",
		}, []string{"dependency"}),
		breakerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state_changes_total",
			Help:      "Breaker transitions by dependency and target state.",
		}, []string{"dependency", "to"}),
	}

	registerer.MustRegister(
		m.deliveryAttempts,
		m.deliveryBackoff,
		m.breakerState,
		m.breakerChanges,
	)

	return m
}

// ObserveAttempt implements delivery.AttemptObserver.
func (m *Metrics) ObserveAttempt(dependency string, attempt delivery.Attempt) {
	m.deliveryAttempts.WithLabelValues(dependency, string(attempt.Outcome)).Inc()
	m.deliveryBackoff.WithLabelValues(dependency).Observe((attempt.Delay + attempt.Jitter).Seconds())
}

// OnStateChange implements circuitbreaker.StateChangeListener.
func (m *Metrics) OnStateChange(dependency string, from, to circuitbreaker.State) {
	m.breakerChanges.WithLabelValues(dependency, string(to)).Inc()
	m.breakerState.WithLabelValues(dependency).Set(stateGaugeValue(to))
}

// RegisterCoalescer exposes a coalescer's counters as prometheus counters.
// The coalescer must outlive the registry.
func RegisterCoalescer(registerer prometheus.Registerer, name string, coalescer *dedupe.Coalescer) {
	counter := func(metric, help string, read func(dedupe.Stats) uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "dedupe",
			Name:        metric,
			Help:        help,
			ConstLabels: prometheus.Labels{"coalescer": name},
		}, func() float64 {
			return float64(read(coalescer.Stats()))
		})
	}

	registerer.MustRegister(
		counter("executions_total", "Operations actually run.", func(s dedupe.Stats) uint64 { return s.Executions }),
		counter("coalesced_total", "Callers attached to an in-flight execution.", func(s dedupe.Stats) uint64 { return s.Coalesced }),
		counter("cache_hits_total", "Callers served a settled result inside the window.", func(s dedupe.Stats) uint64 { return s.CacheHits }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "dedupe",
			Name:        "entries",
			Help:        "Live coalescing entries.",
			ConstLabels: prometheus.Labels{"coalescer": name},
		}, func() float64 {
			return float64(coalescer.Len())
		}),
	)
}

func stateGaugeValue(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.StateOpen:
		return gaugeOpen
	case circuitbreaker.StateHalfOpen:
		return gaugeHalfOpen
	default:
		return gaugeClosed
	}
}
