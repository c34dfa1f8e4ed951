package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nexline-io/lib-resilience/resilience"
)

// ExhaustedNotice is the out-of-band escalation sent when a delivery
// consumes its whole retry budget.
type ExhaustedNotice struct {
	ID         uuid.UUID           `json:"id"`
	Dependency string              `json:"dependency"`
	Target     resilience.Identity `json:"target"`
	StagedID   string              `json:"stagedId,omitempty"`
	Attempts   int                 `json:"attempts"`
	Elapsed    time.Duration       `json:"elapsed"`
	LastError  string              `json:"lastError"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// Notifier delivers the escalation, e.g. to an operational inbox or chat
// channel. It is strictly best-effort: a notifier failure is logged and never
// substituted for the delivery error.
type Notifier interface {
	NotifyExhausted(ctx context.Context, notice ExhaustedNotice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notice ExhaustedNotice) error

func (fn NotifierFunc) NotifyExhausted(ctx context.Context, notice ExhaustedNotice) error {
	if fn == nil {
		return nil
	}

	return fn(ctx, notice)
}
