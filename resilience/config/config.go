package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/nexline-io/lib-resilience/resilience"
	"github.com/nexline-io/lib-resilience/resilience/circuitbreaker"
	"github.com/nexline-io/lib-resilience/resilience/delivery"
	"github.com/nexline-io/lib-resilience/resilience/log"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// DeliveryConfig tunes the two-phase delivery protocol. Durations are
// strings ("500ms", "30s") so they can come from yaml or environment
// variables uniformly.
type DeliveryConfig struct {
	MaxRetries     int     `mapstructure:"max_retries"`
	SettleDelay    string  `mapstructure:"settle_delay"`
	BaseDelay      string  `mapstructure:"base_delay"`
	MaxDelay       string  `mapstructure:"max_delay"`
	JitterFraction float64 `mapstructure:"jitter_fraction"`
	Mode           string  `mapstructure:"mode"`
	DryRun         bool    `mapstructure:"dry_run"`
}

// DedupeConfig tunes the operation deduplicator.
type DedupeConfig struct {
	TTL string `mapstructure:"ttl"`
}

// BreakerConfig tunes the per-dependency circuit breakers.
type BreakerConfig struct {
	FailureThreshold uint32 `mapstructure:"failure_threshold"`
	Cooldown         string `mapstructure:"cooldown"`
}

// HealthConfig tunes the health aggregator and its heartbeat.
type HealthConfig struct {
	HeartbeatInterval string `mapstructure:"heartbeat_interval"`
	ProbeTimeout      string `mapstructure:"probe_timeout"`
}

// ServerConfig tunes the operational HTTP surface.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig tunes the logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the full typed configuration of the resilience core.
type Config struct {
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Dedupe   DedupeConfig   `mapstructure:"dedupe"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Health   HealthConfig   `mapstructure:"health"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load reads configuration from config.yaml in the given search paths (plus
// the working directory), overlaid by environment variables
// (DELIVERY_MAX_RETRIES, BREAKER_COOLDOWN, ...), and validates the result. A
// missing config file is not an error; defaults and environment apply.
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("delivery.max_retries", 5)
	v.SetDefault("delivery.settle_delay", "500ms")
	v.SetDefault("delivery.base_delay", "1s")
	v.SetDefault("delivery.max_delay", "30s")
	v.SetDefault("delivery.jitter_fraction", 0.3)
	v.SetDefault("delivery.mode", string(resilience.ModeReal))
	v.SetDefault("delivery.dry_run", false)
	v.SetDefault("dedupe.ttl", "5s")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", "30s")
	v.SetDefault("health.heartbeat_interval", "15s")
	v.SetDefault("health.probe_timeout", "5s")
	v.SetDefault("server.address", ":8090")
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range searchPaths {
		v.AddConfigPath(path)
	}

	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every section; all findings are reported together.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Delivery, validation.By(func(value any) error {
			dc, ok := value.(DeliveryConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a DeliveryConfig")
			}

			return validation.ValidateStruct(&dc,
				validation.Field(&dc.MaxRetries, validation.Required, validation.Min(1)),
				validation.Field(&dc.SettleDelay, validation.Required, validation.By(validateDuration)),
				validation.Field(&dc.BaseDelay, validation.Required, validation.By(validateDuration)),
				validation.Field(&dc.MaxDelay, validation.Required, validation.By(validateDuration)),
				validation.Field(&dc.JitterFraction, validation.Min(0.0), validation.Max(1.0)),
				validation.Field(&dc.Mode,
					validation.Required,
					validation.In(string(resilience.ModeMock), string(resilience.ModeReal)),
				),
			)
		})),
		validation.Field(&c.Dedupe, validation.By(func(value any) error {
			dc, ok := value.(DedupeConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a DedupeConfig")
			}

			return validation.ValidateStruct(&dc,
				validation.Field(&dc.TTL, validation.Required, validation.By(validateDuration)),
			)
		})),
		validation.Field(&c.Breaker, validation.By(func(value any) error {
			bc, ok := value.(BreakerConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
			}

			return validation.ValidateStruct(&bc,
				validation.Field(&bc.FailureThreshold, validation.Required, validation.Min(uint32(1))),
				validation.Field(&bc.Cooldown, validation.Required, validation.By(validateDuration)),
			)
		})),
		validation.Field(&c.Health, validation.By(func(value any) error {
			hc, ok := value.(HealthConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a HealthConfig")
			}

			return validation.ValidateStruct(&hc,
				validation.Field(&hc.HeartbeatInterval, validation.Required, validation.By(validateDuration)),
				validation.Field(&hc.ProbeTimeout, validation.Required, validation.By(validateDuration)),
			)
		})),
		validation.Field(&c.Logging, validation.By(func(value any) error {
			lc, ok := value.(LoggingConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
			}

			return validation.ValidateStruct(&lc,
				validation.Field(&lc.Level,
					validation.Required,
					validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
				),
			)
		})),
	)
}

// DeliveryConfig converts the section into the dispatcher's typed config.
// Call only after Validate; duration fields are assumed parseable.
func (c *Config) DeliveryConfig() delivery.Config {
	return delivery.Config{
		MaxRetries:     c.Delivery.MaxRetries,
		SettleDelay:    duration(c.Delivery.SettleDelay),
		BaseDelay:      duration(c.Delivery.BaseDelay),
		MaxDelay:       duration(c.Delivery.MaxDelay),
		JitterFraction: c.Delivery.JitterFraction,
		Mode:           resilience.Mode(c.Delivery.Mode),
		DryRun:         c.Delivery.DryRun,
	}
}

// BreakerConfig converts the section into the breaker registry's config.
func (c *Config) BreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: c.Breaker.FailureThreshold,
		Cooldown:         duration(c.Breaker.Cooldown),
	}
}

// DedupeTTL returns the dedup trailing-suppression window.
func (c *Config) DedupeTTL() time.Duration {
	return duration(c.Dedupe.TTL)
}

// HeartbeatInterval returns the health refresh interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return duration(c.Health.HeartbeatInterval)
}

// ProbeTimeout returns the per-probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return duration(c.Health.ProbeTimeout)
}

// LogLevel returns the parsed logging level, defaulting to info.
func (c *Config) LogLevel() log.LogLevel {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return log.InfoLevel
	}

	return level
}

func validateDuration(value any) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(s); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 500ms, 30s)")
	}

	return nil
}

// duration parses a previously validated duration string.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)

	return d
}
