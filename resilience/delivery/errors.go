package delivery

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStagedNotVisible marks a confirm failure caused by read-after-write
	// lag: the staged resource is not visible on the dependency yet. Adapters
	// wrap it so the retry loop keeps going.
	ErrStagedNotVisible = errors.New("delivery: staged resource not visible yet")

	// ErrNoTarget indicates the precedence chain produced no delivery target.
	ErrNoTarget = errors.New("delivery: no target configured and lookup failed")

	// ErrNilAdapter indicates the dispatcher was constructed without an adapter.
	ErrNilAdapter = errors.New("delivery: adapter must not be nil")
)

// ExhaustedRetriesError reports that every confirm attempt was consumed
// without success. LastErr is the final underlying failure.
type ExhaustedRetriesError struct {
	LastErr  error
	Attempts int
	Elapsed  time.Duration
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("confirm retries exhausted after %d attempts in %s: %v", e.Attempts, e.Elapsed, e.LastErr)
}

// Unwrap exposes the final underlying failure.
func (e *ExhaustedRetriesError) Unwrap() error {
	return e.LastErr
}
