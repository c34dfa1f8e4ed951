package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nexline-io/lib-resilience/resilience/circuitbreaker"
	"github.com/nexline-io/lib-resilience/resilience/log"
)

var (
	// ErrInvalidHeartbeatInterval indicates that the heartbeat interval must be positive
	ErrInvalidHeartbeatInterval = errors.New("health: heartbeat interval must be positive")
	// ErrInvalidProbeTimeout indicates that the per-probe timeout must be positive
	ErrInvalidProbeTimeout = errors.New("health: probe timeout must be positive")
)

// Heartbeat periodically refreshes the aggregator's records in the
// background so on-demand reads can serve the cached view instead of
// re-probing. It also implements circuitbreaker.StateChangeListener: a
// breaker opening triggers an immediate probe of that dependency.
type Heartbeat struct {
	aggregator     *Aggregator
	interval       time.Duration
	probeTimeout   time.Duration
	logger         log.Logger
	stopChan       chan struct{}
	immediateCheck chan string
	wg             sync.WaitGroup
}

// NewHeartbeat creates a background refresh loop over aggregator.
// interval: how often to refresh all records
// probeTimeout: timeout for each individual probe
func NewHeartbeat(aggregator *Aggregator, interval, probeTimeout time.Duration, logger log.Logger) (*Heartbeat, error) {
	if interval <= 0 {
		return nil, ErrInvalidHeartbeatInterval
	}

	if probeTimeout <= 0 {
		return nil, ErrInvalidProbeTimeout
	}

	if logger == nil {
		logger = log.NewNone()
	}

	return &Heartbeat{
		aggregator:     aggregator,
		interval:       interval,
		probeTimeout:   probeTimeout,
		logger:         logger,
		stopChan:       make(chan struct{}),
		immediateCheck: make(chan string, 10),
	}, nil
}

// Start begins the refresh loop.
func (h *Heartbeat) Start() {
	h.wg.Add(1)

	go h.loop()

	h.logger.Infof("health heartbeat started - refreshing records every %v", h.interval)
}

// Stop gracefully stops the refresh loop.
func (h *Heartbeat) Stop() {
	close(h.stopChan)
	h.wg.Wait()
	h.logger.Info("health heartbeat stopped")
}

func (h *Heartbeat) loop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// Entering the select loop immediately keeps the heartbeat responsive to
	// immediate checks from the moment it starts.
	for {
		select {
		case <-ticker.C:
			h.aggregator.PullAll(context.Background(), h.probeTimeout)
		case name := <-h.immediateCheck:
			h.logger.Debugf("running immediate health probe for dependency: %s", name)

			if _, ok := h.aggregator.Pull(context.Background(), name, h.probeTimeout); !ok {
				h.logger.Warnf("no health probe registered for dependency: %s", name)
			}
		case <-h.stopChan:
			return
		}
	}
}

// OnStateChange implements circuitbreaker.StateChangeListener. A breaker
// opening schedules an immediate probe so the health view reflects the
// outage before the next interval tick.
func (h *Heartbeat) OnStateChange(dependency string, from, to circuitbreaker.State) {
	if to != circuitbreaker.StateOpen {
		return
	}

	// Non-blocking send to avoid stalling the breaker's listener fan-out.
	select {
	case h.immediateCheck <- dependency:
		h.logger.Debugf("immediate health probe scheduled for %s", dependency)
	default:
		h.logger.Warnf("immediate check channel full for %s, will probe on next interval", dependency)
	}
}
