package runtime

import (
	"fmt"
	"runtime/debug"

	"github.com/nexline-io/lib-resilience/resilience/log"
)

// RecoverAndLog recovers from a panic in the deferring goroutine and logs it
// with a stack trace. Safe with a nil logger.
//
// Usage:
//
//	defer runtime.RecoverAndLog(logger, "health.heartbeat")
func RecoverAndLog(logger log.Logger, name string) {
	if r := recover(); r != nil {
		logPanicWithStack(logger, name, r, debug.Stack())
	}
}

// SafeGo runs fn in a new goroutine, recovering and logging any panic so a
// misbehaving callback cannot crash the process.
func SafeGo(logger log.Logger, name string, fn func()) {
	go func() {
		defer RecoverAndLog(logger, name)

		fn()
	}()
}

func logPanicWithStack(logger log.Logger, name string, panicValue any, stack []byte) {
	if logger == nil {
		return
	}

	logger.Errorf("panic recovered in %s: %v\n%s", name, panicValueString(panicValue), stack)
}

func panicValueString(panicValue any) string {
	switch v := panicValue.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprintf("%+v", v)
	}
}
