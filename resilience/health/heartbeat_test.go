//go:build unit

package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexline-io/lib-resilience/resilience"
	"github.com/nexline-io/lib-resilience/resilience/circuitbreaker"
	"github.com/nexline-io/lib-resilience/resilience/log"
)

func TestNewHeartbeatValidation(t *testing.T) {
	aggregator := NewAggregator(&log.NoneLogger{})

	_, err := NewHeartbeat(aggregator, 0, time.Second, &log.NoneLogger{})
	assert.ErrorIs(t, err, ErrInvalidHeartbeatInterval)

	_, err = NewHeartbeat(aggregator, time.Second, -time.Second, &log.NoneLogger{})
	assert.ErrorIs(t, err, ErrInvalidProbeTimeout)
}

func TestHeartbeatRefreshesRecords(t *testing.T) {
	var probes atomic.Int32

	aggregator := NewAggregator(&log.NoneLogger{})
	aggregator.RegisterProbe("email", func(ctx context.Context) resilience.ProbeResult {
		probes.Add(1)

		return resilience.ProbeResult{Healthy: true, Mode: resilience.ModeReal}
	})

	heartbeat, err := NewHeartbeat(aggregator, 10*time.Millisecond, time.Second, &log.NoneLogger{})
	require.NoError(t, err)

	heartbeat.Start()
	defer heartbeat.Stop()

	assert.Eventually(t, func() bool {
		return probes.Load() >= 2
	}, time.Second, 5*time.Millisecond, "heartbeat should refresh on every tick")

	records := aggregator.Records()
	require.Contains(t, records, "email")
	assert.True(t, records["email"].Healthy)
}

func TestHeartbeatStopHaltsRefreshing(t *testing.T) {
	var probes atomic.Int32

	aggregator := NewAggregator(&log.NoneLogger{})
	aggregator.RegisterProbe("email", func(ctx context.Context) resilience.ProbeResult {
		probes.Add(1)

		return resilience.ProbeResult{Healthy: true}
	})

	heartbeat, err := NewHeartbeat(aggregator, 10*time.Millisecond, time.Second, &log.NoneLogger{})
	require.NoError(t, err)

	heartbeat.Start()

	assert.Eventually(t, func() bool { return probes.Load() >= 1 }, time.Second, 5*time.Millisecond)

	heartbeat.Stop()

	settled := probes.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, probes.Load(), "no probes may run after Stop returns")
}

func TestBreakerOpeningTriggersImmediateProbe(t *testing.T) {
	var probes atomic.Int32

	aggregator := NewAggregator(&log.NoneLogger{})
	aggregator.RegisterProbe("email", func(ctx context.Context) resilience.ProbeResult {
		probes.Add(1)

		return resilience.ProbeResult{Healthy: false, Message: "down"}
	})

	// Long interval: any probe observed below must come from the
	// immediate-check path, not a tick.
	heartbeat, err := NewHeartbeat(aggregator, time.Hour, time.Second, &log.NoneLogger{})
	require.NoError(t, err)

	heartbeat.Start()
	defer heartbeat.Stop()

	heartbeat.OnStateChange("email", circuitbreaker.StateClosed, circuitbreaker.StateOpen)

	assert.Eventually(t, func() bool {
		return probes.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Transitions other than opening are ignored.
	heartbeat.OnStateChange("email", circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen)
	heartbeat.OnStateChange("email", circuitbreaker.StateHalfOpen, circuitbreaker.StateClosed)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), probes.Load())
}
