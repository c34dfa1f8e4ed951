package zap

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	logpkg "github.com/nexline-io/lib-resilience/resilience/log"
)

// Logger adapts a zap sugared logger to the log.Logger interface.
type Logger struct {
	sugar       *zap.SugaredLogger
	atomicLevel zap.AtomicLevel
}

// Compile-time assertion: *Logger implements log.Logger.
var _ logpkg.Logger = (*Logger)(nil)

// NewLogger builds a production JSON logger at the given level.
func NewLogger(level logpkg.LogLevel) (*Logger, error) {
	atomicLevel := zap.NewAtomicLevelAt(toZapLevel(level))

	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{sugar: base.Sugar(), atomicLevel: atomicLevel}, nil
}

// NewDevelopmentLogger builds a human-readable console logger, debug level.
func NewDevelopmentLogger() (*Logger, error) {
	atomicLevel := zap.NewAtomicLevelAt(zapcore.DebugLevel)

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = atomicLevel

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{sugar: base.Sugar(), atomicLevel: atomicLevel}, nil
}

// SetLevel changes the logger's verbosity ceiling at runtime.
func (l *Logger) SetLevel(level logpkg.LogLevel) {
	if l == nil {
		return
	}

	l.atomicLevel.SetLevel(toZapLevel(level))
}

func (l *Logger) must() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}

	return l.sugar
}

func (l *Logger) Debug(args ...any)                 { l.must().Debug(args...) }
func (l *Logger) Debugf(format string, args ...any) { l.must().Debugf(format, args...) }
func (l *Logger) Info(args ...any)                  { l.must().Info(args...) }
func (l *Logger) Infof(format string, args ...any)  { l.must().Infof(format, args...) }
func (l *Logger) Warn(args ...any)                  { l.must().Warn(args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.must().Warnf(format, args...) }
func (l *Logger) Error(args ...any)                 { l.must().Error(args...) }
func (l *Logger) Errorf(format string, args ...any) { l.must().Errorf(format, args...) }

// WithFields returns a child logger with structured key/value pairs attached.
//
//nolint:ireturn
func (l *Logger) WithFields(fields ...any) logpkg.Logger {
	return &Logger{sugar: l.must().With(fields...), atomicLevel: l.atomicLevelOrDefault()}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.must().Sync()
}

func (l *Logger) atomicLevelOrDefault() zap.AtomicLevel {
	if l == nil {
		return zap.NewAtomicLevel()
	}

	return l.atomicLevel
}

func toZapLevel(level logpkg.LogLevel) zapcore.Level {
	switch level {
	case logpkg.DebugLevel:
		return zapcore.DebugLevel
	case logpkg.InfoLevel:
		return zapcore.InfoLevel
	case logpkg.WarnLevel:
		return zapcore.WarnLevel
	case logpkg.ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
