package server

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/nexline-io/lib-resilience/resilience/health"
	"github.com/nexline-io/lib-resilience/resilience/log"
	"github.com/nexline-io/lib-resilience/resilience/runtime"
)

// ErrNoServerConfigured indicates the manager was started without an HTTP server
var ErrNoServerConfigured = errors.New("server: no HTTP server configured, use WithHTTPServer()")

// Manager owns the lifecycle of the operational HTTP server and the health
// heartbeat: it starts them, waits for a termination signal (or a startup
// error), and shuts everything down in order.
type Manager struct {
	httpServer  *fiber.App
	httpAddress string
	heartbeat   *health.Heartbeat
	logger      log.Logger

	serverStarted     chan struct{}
	serverStartedOnce sync.Once
	shutdownChan      <-chan struct{}
	shutdownOnce      sync.Once
	startupErrors     chan error
}

// NewManager creates a lifecycle manager. A nil logger is replaced with a
// no-op logger.
func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNone()
	}

	return &Manager{
		logger:        logger,
		serverStarted: make(chan struct{}),
		startupErrors: make(chan error, 1),
	}
}

// WithHTTPServer configures the HTTP server to manage.
func (m *Manager) WithHTTPServer(app *fiber.App, address string) *Manager {
	m.httpServer = app
	m.httpAddress = address

	return m
}

// WithHeartbeat attaches a health heartbeat whose lifecycle follows the
// server's.
func (m *Manager) WithHeartbeat(heartbeat *health.Heartbeat) *Manager {
	m.heartbeat = heartbeat

	return m
}

// WithShutdownChannel replaces OS signal handling with a caller-owned
// channel, letting tests trigger shutdown deterministically.
func (m *Manager) WithShutdownChannel(ch <-chan struct{}) *Manager {
	m.shutdownChan = ch

	return m
}

// ServerStarted returns a channel closed once the server goroutine has been
// launched. It signals launch, not that the socket is bound.
func (m *Manager) ServerStarted() <-chan struct{} {
	return m.serverStarted
}

// Run starts the server and the heartbeat, then blocks until a termination
// signal arrives, the shutdown channel closes, or startup fails. Shutdown is
// executed before returning.
func (m *Manager) Run() error {
	if m.httpServer == nil {
		return ErrNoServerConfigured
	}

	if m.heartbeat != nil {
		m.heartbeat.Start()
	}

	runtime.SafeGo(m.logger, "server.http", func() {
		m.logger.Infof("starting operational HTTP server on %s", m.httpAddress)

		if err := m.httpServer.Listen(m.httpAddress); err != nil {
			select {
			case m.startupErrors <- fmt.Errorf("http server: %w", err):
			default:
			}
		}
	})

	m.serverStartedOnce.Do(func() {
		close(m.serverStarted)
	})

	m.awaitShutdown()
	m.executeShutdown()

	return nil
}

// awaitShutdown blocks until a shutdown trigger fires.
func (m *Manager) awaitShutdown() {
	if m.shutdownChan != nil {
		select {
		case <-m.shutdownChan:
		case err := <-m.startupErrors:
			m.logger.Errorf("server startup failed: %v", err)
		}

		return
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case <-signals:
		signal.Stop(signals)
	case err := <-m.startupErrors:
		m.logger.Errorf("server startup failed: %v", err)
	}
}

// executeShutdown stops everything in order: HTTP server first so no new
// requests arrive, then the heartbeat, then a final logger flush. Idempotent.
func (m *Manager) executeShutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Info("shutting down operational HTTP server...")

		if err := m.httpServer.Shutdown(); err != nil {
			m.logger.Errorf("error during HTTP server shutdown: %v", err)
		}

		if m.heartbeat != nil {
			m.heartbeat.Stop()
		}

		if err := m.logger.Sync(); err != nil {
			m.logger.Errorf("failed to sync logger: %v", err)
		}

		m.logger.Info("graceful shutdown completed")
	})
}
