package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxAttempts is the attempt ceiling used by Execute.
const DefaultMaxAttempts = 10

// RetryPolicy controls the waits between attempts of a single call.
type RetryPolicy struct {
	// InitialDelay is the wait after the first retryable failure
	InitialDelay time.Duration

	// Multiplier is applied to the delay after every retryable failure
	Multiplier float64

	// MaxDelay caps the computed delay
	MaxDelay time.Duration

	// MaxAttempts is the attempt ceiling used by Execute
	MaxAttempts int
}

// DefaultRetryPolicy returns the 5s / x2 / 60s / 10 attempts policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 5 * time.Second,
		Multiplier:   2,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// normalize replaces unusable values with defaults.
func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}

// next returns the delay that follows d, capped at MaxDelay.
func (p RetryPolicy) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * p.Multiplier)
	if n > p.MaxDelay || n < d {
		return p.MaxDelay
	}
	return n
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// sleepContext is the default Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		e.policy = policy.normalize()
	}
}

// WithSleeper replaces the timed wait between attempts.
func WithSleeper(sleep Sleeper) ExecutorOption {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// Executor runs provider calls with classification-driven retry and backoff.
// An Executor holds no per-call state and is safe for concurrent use.
type Executor struct {
	provider Provider
	policy   RetryPolicy
	sleep    Sleeper
	logger   *slog.Logger
}

// NewExecutor creates an Executor around provider.
func NewExecutor(provider Provider, logger *slog.Logger, opts ...ExecutorOption) (*Executor, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
	}

	e := &Executor{
		provider: provider,
		policy:   DefaultRetryPolicy(),
		sleep:    sleepContext,
		logger:   logger.With("component", "generation_executor"),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Execute calls ExecuteWithRetry with the policy's attempt ceiling.
func (e *Executor) Execute(ctx context.Context, req Request) (*Response, error) {
	return e.ExecuteWithRetry(ctx, req, e.policy.MaxAttempts)
}

// ExecuteWithRetry performs req against the provider up to maxRetries times.
//
// Every failure is classified. RateLimited failures wait for the provider's
// retry-after value when present and the current backoff delay otherwise;
// Transient failures wait for the current backoff delay. The delay doubles
// after each retryable failure up to the policy ceiling. Fatal failures end
// the call at once.
//
// Parameters:
//   - ctx: Cancellation for both the provider call and the waits between attempts
//   - req: The request, validated before any provider call
//   - maxRetries: The attempt ceiling, at least 1
//
// Returns:
//   - The first successful response
//   - The original provider error for fatal failures, an ErrInvalidRequest or
//     ErrInvalidConfig error for unusable input, an ErrRetriesExhausted error when
//     every attempt failed, or an ErrCancelled error when ctx ended during a wait
func (e *Executor) ExecuteWithRetry(ctx context.Context, req Request, maxRetries int) (*Response, error) {
	call := req.CallName()
	logger := e.logger.With("call", call, "model", req.Model)

	if maxRetries < 1 {
		err := fmt.Errorf("%w: max retries must be at least 1, got %d", ErrInvalidConfig, maxRetries)
		logger.ErrorContext(ctx, "generation call rejected", "error", err)
		return nil, err
	}

	if err := req.Validate(); err != nil {
		logger.ErrorContext(ctx, "generation call rejected", "error", err)
		return nil, err
	}

	delay := e.policy.InitialDelay
	for attempt := 1; ; attempt++ {
		logger.DebugContext(ctx, "calling provider",
			"attempt", attempt,
			"max_attempts", maxRetries)

		resp, err := e.provider.Generate(ctx, req)
		if err == nil {
			AttemptsTotal.WithLabelValues(call, "success").Inc()
			if attempt > 1 {
				logger.InfoContext(ctx, "provider call succeeded after retries", "attempt", attempt)
			}
			return resp, nil
		}

		failure := Classify(err)
		AttemptsTotal.WithLabelValues(call, failure.Kind.String()).Inc()

		if !failure.Kind.Retryable() {
			logger.ErrorContext(ctx, "provider call failed with fatal error",
				"attempt", attempt,
				"status_code", failure.StatusCode,
				"error", err)
			return nil, fatalCause(failure, err)
		}

		if attempt >= maxRetries {
			ExhaustedTotal.WithLabelValues(call).Inc()
			logger.ErrorContext(ctx, "provider call exhausted retries",
				"attempts", attempt,
				"last_error", err)
			return nil, fmt.Errorf("%w: %d attempts failed, last error: %v",
				ErrRetriesExhausted, attempt, err)
		}

		wait := delay
		if failure.Kind == FailureRateLimited && failure.RetryAfter != nil {
			wait = *failure.RetryAfter
		}

		RetriesTotal.WithLabelValues(call, failure.Kind.String()).Inc()
		BackoffSeconds.WithLabelValues(failure.Kind.String()).Observe(wait.Seconds())
		logger.WarnContext(ctx, "retryable provider failure, retrying after delay",
			"attempt", attempt,
			"max_attempts", maxRetries,
			"kind", failure.Kind.String(),
			"status_code", failure.StatusCode,
			"delay_ms", wait.Milliseconds(),
			"error", err)

		if err := e.sleep(ctx, wait); err != nil {
			logger.WarnContext(ctx, "generation call cancelled during retry delay",
				"attempt", attempt,
				"ctx_err", err)
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		delay = e.policy.next(delay)
	}
}

// fatalCause returns the error a fatal failure surfaces to the caller.
func fatalCause(failure *Failure, err error) error {
	if failure.Cause != nil {
		return failure.Cause
	}
	return err
}
