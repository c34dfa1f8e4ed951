package zap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logpkg "github.com/nexline-io/lib-resilience/resilience/log"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(logpkg.InfoLevel)
	require.NoError(t, err)
	require.NotNil(t, logger)

	// Exercise every level through the interface; none should panic.
	var iface logpkg.Logger = logger
	iface.Debug("debug suppressed at info level")
	iface.Infof("attempt %d", 1)
	iface.Warn("cooldown running")
	iface.Errorf("confirm failed: %v", assert.AnError)
}

func TestSetLevel(t *testing.T) {
	logger, err := NewLogger(logpkg.ErrorLevel)
	require.NoError(t, err)

	assert.False(t, logger.atomicLevel.Enabled(toZapLevel(logpkg.InfoLevel)))

	logger.SetLevel(logpkg.DebugLevel)
	assert.True(t, logger.atomicLevel.Enabled(toZapLevel(logpkg.DebugLevel)))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger

	assert.NotPanics(t, func() {
		logger.Info("dropped")
		logger.SetLevel(logpkg.DebugLevel)
		_ = logger.WithFields("k", "v")
	})
}

func TestWithFieldsReturnsChild(t *testing.T) {
	logger, err := NewDevelopmentLogger()
	require.NoError(t, err)

	child := logger.WithFields("dependency", "email")
	require.NotNil(t, child)
	child.Info("resolved target")
}
