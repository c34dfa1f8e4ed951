package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexline-io/lib-resilience/resilience/circuitbreaker"
	"github.com/nexline-io/lib-resilience/resilience/dedupe"
	"github.com/nexline-io/lib-resilience/resilience/delivery"
)

func TestObserveAttemptCountsByOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveAttempt("email", delivery.Attempt{Index: 0, Delay: 500 * time.Millisecond, Outcome: delivery.OutcomeRetryable})
	m.ObserveAttempt("email", delivery.Attempt{Index: 1, Delay: time.Second, Jitter: 100 * time.Millisecond, Outcome: delivery.OutcomeSuccess})
	m.ObserveAttempt("chat", delivery.Attempt{Index: 0, Delay: 500 * time.Millisecond, Outcome: delivery.OutcomeTerminal})

	retryable := testutil.ToFloat64(m.deliveryAttempts.WithLabelValues("email", string(delivery.OutcomeRetryable)))
	assert.Equal(t, 1.0, retryable)

	success := testutil.ToFloat64(m.deliveryAttempts.WithLabelValues("email", string(delivery.OutcomeSuccess)))
	assert.Equal(t, 1.0, success)

	terminal := testutil.ToFloat64(m.deliveryAttempts.WithLabelValues("chat", string(delivery.OutcomeTerminal)))
	assert.Equal(t, 1.0, terminal)
}

func TestOnStateChangeTracksGaugeAndTransitions(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.OnStateChange("email", circuitbreaker.StateClosed, circuitbreaker.StateOpen)
	assert.Equal(t, float64(gaugeOpen), testutil.ToFloat64(m.breakerState.WithLabelValues("email")))

	m.OnStateChange("email", circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen)
	assert.Equal(t, float64(gaugeHalfOpen), testutil.ToFloat64(m.breakerState.WithLabelValues("email")))

	m.OnStateChange("email", circuitbreaker.StateHalfOpen, circuitbreaker.StateClosed)
	assert.Equal(t, float64(gaugeClosed), testutil.ToFloat64(m.breakerState.WithLabelValues("email")))

	opened := testutil.ToFloat64(m.breakerChanges.WithLabelValues("email", string(circuitbreaker.StateOpen)))
	assert.Equal(t, 1.0, opened)
}

func TestRegisterCoalescerExportsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	coalescer := dedupe.New(nil)

	RegisterCoalescer(registry, "operations", coalescer)

	key := dedupe.Key("send", "target", "body")
	_, err := coalescer.Do(context.Background(), key, time.Second, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = coalescer.Do(context.Background(), key, time.Second, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				values[family.GetName()] = metric.GetCounter().GetValue()
			}

			if metric.GetGauge() != nil {
				values[family.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 1.0, values["resilience_dedupe_executions_total"])
	assert.Equal(t, 1.0, values["resilience_dedupe_cache_hits_total"])
	assert.Equal(t, 1.0, values["resilience_dedupe_entries"])
}

func TestRegisteringTwicePanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	New(registry)

	assert.Panics(t, func() { New(registry) })
}
