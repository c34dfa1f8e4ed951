package circuitbreaker

import "time"

// Config holds the per-dependency breaker knobs.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker while closed.
	FailureThreshold uint32

	// Cooldown is how long the breaker stays open before admitting the
	// half-open trial call. Evaluated lazily at call time off the monotonic
	// clock; no background timer runs.
	Cooldown time.Duration
}

// DefaultConfig provides balanced settings for most dependencies.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// AggressiveConfig for dependencies requiring fast failure detection, such
// as chat posting where stale messages lose value quickly.
func AggressiveConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         10 * time.Second,
	}
}

// ConservativeConfig for dependencies that should tolerate more failures,
// such as issue trackers where occasional slowness is routine.
func ConservativeConfig() Config {
	return Config{
		FailureThreshold: 10,
		Cooldown:         2 * time.Minute,
	}
}

func (c Config) normalize() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultConfig().FailureThreshold
	}

	if c.Cooldown <= 0 {
		c.Cooldown = DefaultConfig().Cooldown
	}

	return c
}
