package iteration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/generation"
)

// Common errors
var (
	ErrNilExecutor  = errors.New("executor cannot be nil")
	ErrNilPersister = errors.New("persister cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// Executor performs a single provider call with retry.
type Executor interface {
	ExecuteWithRetry(ctx context.Context, req generation.Request, maxRetries int) (*generation.Response, error)
}

// Persister stores completed responses.
type Persister interface {
	SaveResponse(ctx context.Context, taskID uuid.UUID, resp *generation.Response) error
}

// Config holds the per-run settings of an Orchestrator.
type Config struct {
	Prompts    Prompts
	MaxRetries int

	// DefaultModel is used for stored conversations that name no model.
	DefaultModel generation.ModelDescriptor
}

// Orchestrator drives one task iteration. Each Orchestrator owns a single
// cancellation context shared by its primary and summarization calls; once
// cancelled it stays cancelled.
type Orchestrator struct {
	executor  Executor
	persister Persister
	config    Config
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewOrchestrator creates an Orchestrator whose cancellation context derives from parent.
// Callers must call Cancel once the orchestrator is no longer needed.
func NewOrchestrator(
	parent context.Context,
	executor Executor,
	persister Persister,
	config Config,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if executor == nil {
		return nil, ErrNilExecutor
	}
	if persister == nil {
		return nil, ErrNilPersister
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if err := config.Prompts.Validate(); err != nil {
		return nil, err
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = generation.DefaultMaxAttempts
	}

	ctx, cancel := context.WithCancel(parent)

	return &Orchestrator{
		executor:  executor,
		persister: persister,
		config:    config,
		logger:    logger.With("component", "iteration_orchestrator"),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Cancel cancels every in-flight and future call of this orchestrator.
func (o *Orchestrator) Cancel() {
	o.cancel()
}

// Done returns a channel that is closed once the orchestrator is cancelled.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.ctx.Done()
}

// RunIteration runs the primary call for turns and, if summarize is set, a
// summarization call over turns plus one synthetic summary request. Each
// response is handed to the persister as soon as it arrives.
//
// The first error ends the run. A summarization failure is returned even
// though the primary response has already been persisted.
func (o *Orchestrator) RunIteration(
	taskID uuid.UUID,
	turns []generation.Turn,
	model generation.ModelDescriptor,
	summarize bool,
) error {
	ctx := o.ctx
	logger := o.logger.With("task_id", taskID, "model", model.Name, "summarize", summarize)

	if err := model.Validate(); err != nil {
		logger.ErrorContext(ctx, "invalid model descriptor", "error", err)
		return err
	}

	logger.InfoContext(ctx, "starting iteration", "turn_count", len(turns))

	primary, err := o.executor.ExecuteWithRetry(ctx, generation.Request{
		SystemPrompt: o.config.Prompts.Primary,
		Turns:        turns,
		Model:        model.Name,
		Primary:      true,
	}, o.config.MaxRetries)
	if err != nil {
		logger.ErrorContext(ctx, "primary generation failed", "error", err)
		return err
	}

	if err := o.persister.SaveResponse(ctx, taskID, primary); err != nil {
		logger.ErrorContext(ctx, "failed to persist primary response", "error", err)
		return fmt.Errorf("failed to persist primary response: %w", err)
	}

	if !summarize {
		logger.InfoContext(ctx, "iteration completed")
		return nil
	}

	summary, err := o.executor.ExecuteWithRetry(ctx, generation.Request{
		SystemPrompt: o.config.Prompts.Summary,
		Turns:        withSummaryRequest(turns, taskID),
		Model:        model.Name,
		Primary:      false,
	}, o.config.MaxRetries)
	if err != nil {
		logger.ErrorContext(ctx, "summary generation failed", "error", err)
		return err
	}

	if err := o.persister.SaveResponse(ctx, taskID, summary); err != nil {
		logger.ErrorContext(ctx, "failed to persist summary response", "error", err)
		return fmt.Errorf("failed to persist summary response: %w", err)
	}

	logger.InfoContext(ctx, "iteration completed with summary")
	return nil
}

// withSummaryRequest returns a new slice holding turns followed by the summary request.
// The caller's slice is never modified.
func withSummaryRequest(turns []generation.Turn, taskID uuid.UUID) []generation.Turn {
	extended := make([]generation.Turn, len(turns), len(turns)+1)
	copy(extended, turns)
	return append(extended, generation.Turn{
		Role:    generation.RoleUser,
		Content: SummaryRequestText,
		TaskID:  taskID,
	})
}
