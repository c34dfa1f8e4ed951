package delivery

import (
	"errors"

	"github.com/nexline-io/lib-resilience/resilience"
)

// RetryClassifier decides whether a confirm failure is worth another attempt.
type RetryClassifier interface {
	IsRetryable(err error) bool
}

// RetryClassifierFunc adapts a function to RetryClassifier.
type RetryClassifierFunc func(err error) bool

func (fn RetryClassifierFunc) IsRetryable(err error) bool {
	if fn == nil {
		return false
	}

	return fn(err)
}

// DefaultRetryClassifier treats read-after-write lag and explicitly
// transient taxonomy errors as retryable; everything else is terminal.
func DefaultRetryClassifier() RetryClassifier {
	return RetryClassifierFunc(func(err error) bool {
		if err == nil {
			return false
		}

		if errors.Is(err, ErrStagedNotVisible) {
			return true
		}

		return resilience.KindOf(err) == resilience.KindTransientDelivery
	})
}

// RejectionClassifier decides whether a create failure in dry-run mode is an
// expected test-mode rejection (e.g. recipient policy rejection) that should
// count as a successful dry run.
type RejectionClassifier interface {
	IsExpectedRejection(err error) bool
}

// RejectionClassifierFunc adapts a function to RejectionClassifier.
type RejectionClassifierFunc func(err error) bool

func (fn RejectionClassifierFunc) IsExpectedRejection(err error) bool {
	if fn == nil {
		return false
	}

	return fn(err)
}
