package resilience

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can distinguish "try again later"
// (dependency unavailable, transient) from "this will not succeed as
// submitted" (validation, terminal).
type Kind string

const (
	// KindValidation marks caller-supplied input rejected before any
	// dependency call. Never retried.
	KindValidation Kind = "validation"

	// KindDependencyUnavailable marks a fast failure taken while a circuit
	// breaker is open. No dependency call was made.
	KindDependencyUnavailable Kind = "dependency_unavailable"

	// KindTransientDelivery marks a failure that the delivery protocol
	// retries internally. It only surfaces if classification happens outside
	// the retry loop.
	KindTransientDelivery Kind = "transient_delivery"

	// KindTerminalDelivery marks a non-retryable business failure such as a
	// permission denial or a bounce.
	KindTerminalDelivery Kind = "terminal_delivery"

	// KindExhaustedRetries marks a delivery that consumed its whole retry
	// budget without succeeding.
	KindExhaustedRetries Kind = "exhausted_retries"

	// KindInternal is the fallback for errors that carry no explicit kind.
	KindInternal Kind = "internal"
)

// Error is the taxonomy error carried across component boundaries.
// It wraps the underlying cause so errors.Is and errors.As keep working.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// NewError builds a taxonomy error wrapping cause. cause may be nil.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// ValidationError builds a KindValidation error.
func ValidationError(message string, cause error) *Error {
	return NewError(KindValidation, message, cause)
}

// DependencyUnavailableError builds a KindDependencyUnavailable error for the
// named dependency.
func DependencyUnavailableError(dependency string, cause error) *Error {
	return NewError(KindDependencyUnavailable, fmt.Sprintf("dependency %s is currently unavailable", dependency), cause)
}

// TransientDeliveryError builds a KindTransientDelivery error.
func TransientDeliveryError(message string, cause error) *Error {
	return NewError(KindTransientDelivery, message, cause)
}

// TerminalDeliveryError builds a KindTerminalDelivery error.
func TerminalDeliveryError(message string, cause error) *Error {
	return NewError(KindTerminalDelivery, message, cause)
}

// KindOf extracts the taxonomy kind from err. Errors outside the taxonomy
// report KindInternal; nil reports the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var taxonomyErr *Error
	if errors.As(err, &taxonomyErr) && taxonomyErr != nil {
		return taxonomyErr.Kind
	}

	return KindInternal
}

// IsRetryable reports whether err is worth retrying from the caller's side:
// transient failures and open-breaker rejections both qualify once the
// dependency recovers.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransientDelivery, KindDependencyUnavailable:
		return true
	default:
		return false
	}
}
