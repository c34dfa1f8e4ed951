package delivery

import (
	"time"

	"github.com/nexline-io/lib-resilience/resilience"
)

const (
	defaultMaxRetries     = 5
	defaultSettleDelay    = 500 * time.Millisecond
	defaultBaseDelay      = time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultJitterFraction = 0.3
)

// Config holds the delivery protocol knobs. The zero value is normalized to
// the defaults at construction.
type Config struct {
	// MaxRetries bounds the confirm attempts.
	MaxRetries int

	// SettleDelay is the fixed wait before the first confirm attempt,
	// allowing the staged resource to propagate.
	SettleDelay time.Duration

	// BaseDelay and MaxDelay shape the exponential backoff for confirm
	// attempts after the first: min(BaseDelay * 2^attempt, MaxDelay).
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// JitterFraction adds uniform random jitter in
	// [0, JitterFraction * computed delay] to each backoff wait.
	JitterFraction float64

	// Mode selects mock (fully simulated) or real execution.
	Mode resilience.Mode

	// DryRun executes create for real but intentionally skips confirm.
	// Only meaningful in real mode.
	DryRun bool
}

// DefaultConfig returns the balanced defaults for live delivery.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     defaultMaxRetries,
		SettleDelay:    defaultSettleDelay,
		BaseDelay:      defaultBaseDelay,
		MaxDelay:       defaultMaxDelay,
		JitterFraction: defaultJitterFraction,
		Mode:           resilience.ModeReal,
	}
}

func (c Config) normalize() Config {
	defaults := DefaultConfig()

	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}

	if c.SettleDelay <= 0 {
		c.SettleDelay = defaults.SettleDelay
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = defaults.BaseDelay
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = defaults.MaxDelay
	}

	if c.JitterFraction <= 0 {
		c.JitterFraction = defaults.JitterFraction
	}

	if c.Mode == "" {
		c.Mode = resilience.ModeReal
	}

	return c
}
