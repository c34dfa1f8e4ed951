package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexline-io/lib-resilience/resilience"
	"github.com/nexline-io/lib-resilience/resilience/backoff"
	"github.com/nexline-io/lib-resilience/resilience/log"
	"github.com/nexline-io/lib-resilience/resilience/runtime"
)

const escalationTimeout = 10 * time.Second

// AttemptOutcome classifies one confirm attempt.
type AttemptOutcome string

const (
	OutcomeSuccess   AttemptOutcome = "success"
	OutcomeRetryable AttemptOutcome = "retryable_error"
	OutcomeTerminal  AttemptOutcome = "terminal_error"
)

// Attempt describes one confirm attempt. It exists only within a single
// delivery call; observers receive a copy.
type Attempt struct {
	Index   int
	Delay   time.Duration
	Jitter  time.Duration
	Outcome AttemptOutcome
}

// AttemptObserver receives per-attempt telemetry, e.g. for metrics.
type AttemptObserver interface {
	ObserveAttempt(dependency string, attempt Attempt)
}

// Result is the outcome of a successful (or simulated) delivery.
type Result struct {
	Target       resilience.Identity       `json:"target"`
	Staged       resilience.StagedResource `json:"staged"`
	Confirmation resilience.Confirmation   `json:"confirmation"`
	Mocked       bool                      `json:"mocked,omitempty"`
	DryRun       bool                      `json:"dryRun,omitempty"`
	Attempts     int                       `json:"attempts"`
	Elapsed      time.Duration             `json:"elapsed"`
}

// Dispatcher runs the two-phase delivery protocol against one adapter.
type Dispatcher struct {
	adapter   resilience.Adapter
	cfg       Config
	logger    log.Logger
	retry     RetryClassifier
	rejection RejectionClassifier
	notifier  Notifier
	observer  AttemptObserver

	// Target resolution is cached per process lifetime; only successful
	// resolutions populate the cache.
	targetMu sync.Mutex
	target   *resilience.Identity
	override *resilience.Identity
}

// Option configures a Dispatcher.
type Option func(d *Dispatcher)

// WithRetryClassifier replaces the default confirm retry classifier.
func WithRetryClassifier(classifier RetryClassifier) Option {
	return func(d *Dispatcher) { d.retry = classifier }
}

// WithRejectionClassifier sets the dry-run expected-rejection classifier.
func WithRejectionClassifier(classifier RejectionClassifier) Option {
	return func(d *Dispatcher) { d.rejection = classifier }
}

// WithNotifier sets the best-effort escalation notifier.
func WithNotifier(notifier Notifier) Option {
	return func(d *Dispatcher) { d.notifier = notifier }
}

// WithTargetOverride pins the delivery target, bypassing adapter lookup.
func WithTargetOverride(target resilience.Identity) Option {
	return func(d *Dispatcher) { d.override = &target }
}

// WithAttemptObserver registers a per-attempt telemetry sink.
func WithAttemptObserver(observer AttemptObserver) Option {
	return func(d *Dispatcher) { d.observer = observer }
}

// NewDispatcher creates a delivery dispatcher for adapter. A nil logger is
// replaced with a no-op logger.
func NewDispatcher(adapter resilience.Adapter, cfg Config, logger log.Logger, opts ...Option) (*Dispatcher, error) {
	if adapter == nil {
		return nil, ErrNilAdapter
	}

	if logger == nil {
		logger = log.NewNone()
	}

	dispatcher := &Dispatcher{
		adapter: adapter,
		cfg:     cfg.normalize(),
		logger:  logger,
		retry:   DefaultRetryClassifier(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(dispatcher)
		}
	}

	return dispatcher, nil
}

// Deliver runs the full protocol for payload: resolve target, create, then
// confirm with retries. See the package documentation for the mode branches.
func (d *Dispatcher) Deliver(ctx context.Context, payload resilience.Payload) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if payload.Body == "" {
		return Result{}, resilience.ValidationError("delivery payload body is empty", nil)
	}

	if d.cfg.Mode == resilience.ModeMock {
		return d.deliverMock(payload), nil
	}

	target, err := d.resolveTarget(ctx)
	if err != nil {
		return Result{}, err
	}

	// Phase 1: single attempt, no retry. Failure here is terminal.
	staged, err := d.adapter.Create(ctx, target, payload)
	if err != nil {
		if d.cfg.DryRun && d.rejection != nil && d.rejection.IsExpectedRejection(err) {
			d.logger.Infof("dry run: create rejected as expected by %s: %v", d.adapter.Name(), err)

			return Result{Target: target, DryRun: true}, nil
		}

		return Result{}, resilience.TerminalDeliveryError("create failed", err)
	}

	if d.cfg.DryRun {
		d.logger.Infof("dry run: staged %s on %s, confirm skipped", staged.ID, d.adapter.Name())

		return Result{Target: target, Staged: staged, DryRun: true}, nil
	}

	return d.confirmWithRetries(ctx, target, staged)
}

// DeliverEnvelope wraps Deliver in the uniform result envelope.
func (d *Dispatcher) DeliverEnvelope(ctx context.Context, payload resilience.Payload) resilience.Envelope[Result] {
	result, err := d.Deliver(ctx, payload)
	if err != nil {
		return resilience.Failure[Result](err)
	}

	switch {
	case result.Mocked:
		return resilience.MockedSuccess(result)
	case result.DryRun:
		return resilience.DryRunSuccess(result)
	default:
		return resilience.Success(result)
	}
}

// deliverMock simulates both phases deterministically without contacting the
// dependency: equal payloads produce equal synthetic identifiers.
func (d *Dispatcher) deliverMock(payload resilience.Payload) Result {
	seed := "mock:" + d.adapter.Name() + ":" + payload.Subject + ":" + payload.Body
	stagedID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed+":staged"))
	confirmationID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed+":confirmed"))
	now := time.Now()

	return Result{
		Target:       resilience.Identity{ID: "mock", Label: "mock:" + d.adapter.Name()},
		Staged:       resilience.StagedResource{ID: stagedID.String(), CreatedAt: now},
		Confirmation: resilience.Confirmation{ID: confirmationID.String(), ConfirmedAt: now},
		Mocked:       true,
	}
}

// resolveTarget applies the precedence chain: explicit override, cached
// value, adapter lookup, configuration error.
func (d *Dispatcher) resolveTarget(ctx context.Context) (resilience.Identity, error) {
	d.targetMu.Lock()
	defer d.targetMu.Unlock()

	if d.override != nil {
		return *d.override, nil
	}

	if d.target != nil {
		return *d.target, nil
	}

	target, err := d.adapter.ResolveTarget(ctx)
	if err != nil {
		return resilience.Identity{}, resilience.ValidationError("delivery target could not be resolved", err)
	}

	d.target = &target
	d.logger.Infof("resolved delivery target for %s: %s", d.adapter.Name(), target.ID)

	return target, nil
}

func (d *Dispatcher) confirmWithRetries(ctx context.Context, target resilience.Identity, staged resilience.StagedResource) (Result, error) {
	start := time.Now()

	var lastErr error

	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		delay, jitter := d.attemptWait(attempt)

		if err := backoff.WaitContext(ctx, delay+jitter); err != nil {
			return Result{}, err
		}

		confirmation, err := d.adapter.Confirm(ctx, staged)
		if err == nil {
			d.observe(Attempt{Index: attempt, Delay: delay, Jitter: jitter, Outcome: OutcomeSuccess})

			return Result{
				Target:       target,
				Staged:       staged,
				Confirmation: confirmation,
				Attempts:     attempt + 1,
				Elapsed:      time.Since(start),
			}, nil
		}

		lastErr = err

		if !d.retry.IsRetryable(err) {
			d.observe(Attempt{Index: attempt, Delay: delay, Jitter: jitter, Outcome: OutcomeTerminal})

			return Result{}, resilience.TerminalDeliveryError("confirm failed", err)
		}

		d.observe(Attempt{Index: attempt, Delay: delay, Jitter: jitter, Outcome: OutcomeRetryable})
		d.logger.Warnf("confirm attempt %d/%d on %s failed, retrying: %v", attempt+1, d.cfg.MaxRetries, d.adapter.Name(), err)
	}

	exhausted := &ExhaustedRetriesError{
		LastErr:  lastErr,
		Attempts: d.cfg.MaxRetries,
		Elapsed:  time.Since(start),
	}

	d.escalate(ctx, target, staged, exhausted)

	return Result{}, resilience.NewError(resilience.KindExhaustedRetries, "delivery retries exhausted", exhausted)
}

// attemptWait computes the wait before a confirm attempt. The first attempt
// waits a fixed settle delay so staging can propagate; later attempts use
// capped exponential backoff with proportional jitter.
func (d *Dispatcher) attemptWait(attempt int) (delay, jitter time.Duration) {
	if attempt == 0 {
		return d.cfg.SettleDelay, 0
	}

	delay = backoff.Exponential(d.cfg.BaseDelay, attempt, d.cfg.MaxDelay)

	return delay, backoff.Jitter(delay, d.cfg.JitterFraction)
}

// escalate sends the out-of-band exhaustion notice. Strictly best-effort:
// failures and panics are logged, never propagated, so the caller always
// receives the original ExhaustedRetriesError.
func (d *Dispatcher) escalate(ctx context.Context, target resilience.Identity, staged resilience.StagedResource, exhausted *ExhaustedRetriesError) {
	if d.notifier == nil {
		return
	}

	defer runtime.RecoverAndLog(d.logger, "delivery.escalation")

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), escalationTimeout)
	defer cancel()

	notice := ExhaustedNotice{
		ID:         uuid.New(),
		Dependency: d.adapter.Name(),
		Target:     target,
		StagedID:   staged.ID,
		Attempts:   exhausted.Attempts,
		Elapsed:    exhausted.Elapsed,
		LastError:  exhausted.LastErr.Error(),
		OccurredAt: time.Now(),
	}

	if err := d.notifier.NotifyExhausted(notifyCtx, notice); err != nil {
		d.logger.Errorf("exhaustion notification failed for %s: %v", d.adapter.Name(), err)
	}
}

func (d *Dispatcher) observe(attempt Attempt) {
	if d.observer == nil {
		return
	}

	d.observer.ObserveAttempt(d.adapter.Name(), attempt)
}
