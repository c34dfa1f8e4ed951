package log

// NoneLogger discards every log entry. Useful in tests and as the nil-logger
// fallback inside components.
type NoneLogger struct{}

// NewNone creates a no-op logger.
//
//nolint:ireturn
func NewNone() Logger {
	return &NoneLogger{}
}

func (l *NoneLogger) Debug(args ...any)                 {}
func (l *NoneLogger) Debugf(format string, args ...any) {}
func (l *NoneLogger) Info(args ...any)                  {}
func (l *NoneLogger) Infof(format string, args ...any)  {}
func (l *NoneLogger) Warn(args ...any)                  {}
func (l *NoneLogger) Warnf(format string, args ...any)  {}
func (l *NoneLogger) Error(args ...any)                 {}
func (l *NoneLogger) Errorf(format string, args ...any) {}

// WithFields returns the same no-op logger.
//
//nolint:ireturn
func (l *NoneLogger) WithFields(fields ...any) Logger { return l }

// Sync is a no-op and always returns nil.
func (l *NoneLogger) Sync() error { return nil }
