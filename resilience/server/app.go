package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexline-io/lib-resilience/resilience"
	"github.com/nexline-io/lib-resilience/resilience/circuitbreaker"
	"github.com/nexline-io/lib-resilience/resilience/health"
	"github.com/nexline-io/lib-resilience/resilience/log"
)

const (
	statusAvailable = "available"
	statusDegraded  = "degraded"
)

// Options wires the operational surface to the core registries. Health is
// required; the admin routes for breakers and modes are registered only when
// the corresponding registry is provided.
type Options struct {
	Health   *health.Aggregator
	Required []string
	Breakers *circuitbreaker.Registry
	Modes    *resilience.ModeRegistry

	// Gatherer backs GET /metrics; defaults to the process-wide registry.
	Gatherer prometheus.Gatherer

	Logger log.Logger
}

// dependencyStatus is one dependency's entry in the health response,
// combining the latest probe record with breaker statistics when a breaker
// registry is attached.
type dependencyStatus struct {
	Healthy             bool            `json:"healthy"`
	Mode                resilience.Mode `json:"mode,omitempty"`
	LatencyMs           int64           `json:"latency_ms,omitempty"`
	Message             string          `json:"message,omitempty"`
	CheckedAt           string          `json:"checked_at,omitempty"`
	CircuitBreakerState string          `json:"circuit_breaker_state,omitempty"`
	ConsecutiveFailures uint32          `json:"consecutive_failures,omitempty"`
}

type modeUpdate struct {
	Dependency string `json:"dependency"`
	Mode       string `json:"mode"`
}

// NewApp builds the fiber app exposing health, readiness, metrics, and the
// admin routes.
func NewApp(opts Options) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNone()
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/health", healthHandler(opts))
	app.Get("/ready", readyHandler(opts))
	app.Get("/metrics", metricsHandler(opts))

	if opts.Breakers != nil {
		app.Get("/admin/breakers", listBreakersHandler(opts.Breakers))
		app.Post("/admin/breakers/reset", resetAllHandler(opts.Breakers, logger))
		app.Post("/admin/breakers/:name/reset", resetOneHandler(opts.Breakers, logger))
	}

	if opts.Modes != nil {
		app.Put("/admin/mode", modeHandler(opts.Modes, logger))
	}

	return app
}

// healthHandler reports the cached health records. Overall status is
// degraded (503) when any dependency is unhealthy.
func healthHandler(opts Options) fiber.Handler {
	return func(c *fiber.Ctx) error {
		overallStatus := statusAvailable
		httpStatus := fiber.StatusOK

		dependencies := make(map[string]*dependencyStatus)

		for name, record := range opts.Health.Records() {
			status := &dependencyStatus{
				Healthy:   record.Healthy,
				Mode:      record.Mode,
				LatencyMs: record.Latency.Milliseconds(),
				Message:   record.Message,
				CheckedAt: record.CheckedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			}

			if opts.Breakers != nil {
				status.CircuitBreakerState = string(opts.Breakers.GetState(name))
				status.ConsecutiveFailures = opts.Breakers.GetCounts(name).ConsecutiveFailures
			}

			if !record.Healthy {
				overallStatus = statusDegraded
				httpStatus = fiber.StatusServiceUnavailable
			}

			dependencies[name] = status
		}

		return c.Status(httpStatus).JSON(fiber.Map{
			"status":       overallStatus,
			"dependencies": dependencies,
		})
	}
}

func readyHandler(opts Options) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report := opts.Health.Readiness(opts.Required...)

		httpStatus := fiber.StatusOK
		if !report.Ready {
			httpStatus = fiber.StatusServiceUnavailable
		}

		return c.Status(httpStatus).JSON(report)
	}
}

func metricsHandler(opts Options) fiber.Handler {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

func listBreakersHandler(breakers *circuitbreaker.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		states := make(map[string]string)
		for _, name := range breakers.Names() {
			states[name] = string(breakers.GetState(name))
		}

		return c.JSON(fiber.Map{"breakers": states})
	}
}

func resetAllHandler(breakers *circuitbreaker.Registry, logger log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		breakers.ResetAll()
		logger.Info("all circuit breakers reset via admin endpoint")

		return c.JSON(fiber.Map{"reset": breakers.Names()})
	}
}

func resetOneHandler(breakers *circuitbreaker.Registry, logger log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		breakers.Reset(name)
		logger.Infof("circuit breaker %s reset via admin endpoint", name)

		return c.JSON(fiber.Map{"reset": name})
	}
}

func modeHandler(modes *resilience.ModeRegistry, logger log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var update modeUpdate
		if err := c.BodyParser(&update); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
		}

		if update.Dependency == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "dependency is required"})
		}

		mode, err := resilience.ParseMode(update.Mode)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		if err := modes.Set(update.Dependency, mode); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		logger.Infof("dependency %s switched to %s mode via admin endpoint", update.Dependency, mode)

		return c.JSON(fiber.Map{"dependency": update.Dependency, "mode": mode})
	}
}
