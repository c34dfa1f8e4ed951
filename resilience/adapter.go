package resilience

import (
	"context"
	"time"
)

// Mode is the operating mode of a dependency adapter.
type Mode string

const (
	// ModeMock simulates every call without contacting the dependency.
	ModeMock Mode = "mock"
	// ModeReal executes calls against the live dependency.
	ModeReal Mode = "real"
)

// Identity is a resolved delivery destination on a dependency, e.g. a
// mailbox, channel, or project.
type Identity struct {
	ID      string `json:"id"`
	Address string `json:"address,omitempty"`
	Label   string `json:"label,omitempty"`
}

// Payload is the provider-neutral content of an outbound operation.
type Payload struct {
	Subject string            `json:"subject,omitempty"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

// StagedResource is the phase-1 output of a two-phase delivery: a resource
// created on the dependency but not yet committed (e.g. a draft).
type StagedResource struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Confirmation is the phase-2 output: proof the staged resource was
// committed.
type Confirmation struct {
	ID          string    `json:"id"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// ProbeResult is one health observation of a dependency adapter.
type ProbeResult struct {
	Healthy bool          `json:"healthy"`
	Mode    Mode          `json:"mode"`
	Latency time.Duration `json:"latency,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Adapter is the uniform capability set the core consumes per external
// dependency. Implementations own the provider wire format; the core only
// sequences the calls.
type Adapter interface {
	// Name identifies the dependency, e.g. "email" or "chat".
	Name() string

	// ResolveTarget looks the delivery destination up on the dependency.
	ResolveTarget(ctx context.Context) (Identity, error)

	// Create stages a resource for the payload without committing it.
	Create(ctx context.Context, target Identity, payload Payload) (StagedResource, error)

	// Confirm commits a previously staged resource.
	Confirm(ctx context.Context, staged StagedResource) (Confirmation, error)

	// ProbeHealth reports the adapter's current health and operating mode.
	ProbeHealth(ctx context.Context) ProbeResult
}
