package log

import (
	"fmt"
	"log"
	"strings"
)

// controlCharReplacer escapes control characters that can be used for log
// injection (CWE-117): newlines and tabs in attacker-influenced strings can
// forge fake log entries.
var controlCharReplacer = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func sanitizeString(s string) string {
	return controlCharReplacer.Replace(s)
}

func sanitizeArgs(args []any) []any {
	sanitized := make([]any, len(args))

	for i, arg := range args {
		if s, ok := arg.(string); ok {
			sanitized[i] = sanitizeString(s)
		} else {
			sanitized[i] = arg
		}
	}

	return sanitized
}

// GoLogger is the Go built-in (log) implementation of the Logger interface.
// String arguments are sanitized before being written.
type GoLogger struct {
	fields []any
	Level  LogLevel
}

// IsLevelEnabled checks if the given level is enabled.
func (l *GoLogger) IsLevelEnabled(level LogLevel) bool {
	if l == nil {
		return false
	}

	return l.Level >= level
}

// Debug logs at debug level.
func (l *GoLogger) Debug(args ...any) { l.print(DebugLevel, args...) }

// Debugf logs a formatted message at debug level.
func (l *GoLogger) Debugf(format string, args ...any) { l.printf(DebugLevel, format, args...) }

// Info logs at info level.
func (l *GoLogger) Info(args ...any) { l.print(InfoLevel, args...) }

// Infof logs a formatted message at info level.
func (l *GoLogger) Infof(format string, args ...any) { l.printf(InfoLevel, format, args...) }

// Warn logs at warn level.
func (l *GoLogger) Warn(args ...any) { l.print(WarnLevel, args...) }

// Warnf logs a formatted message at warn level.
func (l *GoLogger) Warnf(format string, args ...any) { l.printf(WarnLevel, format, args...) }

// Error logs at error level.
func (l *GoLogger) Error(args ...any) { l.print(ErrorLevel, args...) }

// Errorf logs a formatted message at error level.
func (l *GoLogger) Errorf(format string, args ...any) { l.printf(ErrorLevel, format, args...) }

// WithFields returns a child logger carrying the accumulated key/value pairs.
//
//nolint:ireturn
func (l *GoLogger) WithFields(fields ...any) Logger {
	if l == nil {
		return &GoLogger{}
	}

	newFields := make([]any, 0, len(l.fields)+len(fields))
	newFields = append(newFields, l.fields...)
	newFields = append(newFields, fields...)

	return &GoLogger{Level: l.Level, fields: newFields}
}

// Sync is a no-op for the stdlib logger.
func (l *GoLogger) Sync() error { return nil }

func (l *GoLogger) print(level LogLevel, args ...any) {
	if l.IsLevelEnabled(level) {
		log.Print(l.hydrate(level, fmt.Sprint(sanitizeArgs(args)...)))
	}
}

func (l *GoLogger) printf(level LogLevel, format string, args ...any) {
	if l.IsLevelEnabled(level) {
		log.Print(l.hydrate(level, fmt.Sprintf(sanitizeString(format), args...)))
	}
}

func (l *GoLogger) hydrate(level LogLevel, message string) string {
	parts := make([]string, 0, 3)
	parts = append(parts, fmt.Sprintf("[%s]", level.String()))

	if fields := l.hydrateFields(); fields != "" {
		parts = append(parts, fields)
	}

	parts = append(parts, message)

	return strings.Join(parts, " ")
}

func (l *GoLogger) hydrateFields() string {
	if len(l.fields) == 0 {
		return ""
	}

	parts := make([]string, 0, (len(l.fields)+1)/2)

	for i := 0; i < len(l.fields); i += 2 {
		if i+1 >= len(l.fields) {
			parts = append(parts, fmt.Sprint(l.fields[i]))
			continue
		}

		parts = append(parts, fmt.Sprintf("%v=%v", l.fields[i], l.fields[i+1]))
	}

	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}
