package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/iteration"
	"github.com/phrazzld/scry-worker/internal/store"
)

// Common errors
var (
	ErrNilConversationLoader = errors.New("conversation loader cannot be nil")
	ErrNilExecutor           = errors.New("executor cannot be nil")
	ErrNilPersister          = errors.New("persister cannot be nil")
	ErrEmptyConversationID   = errors.New("conversation ID cannot be empty")
)

// ConversationLoader loads the conversation an iteration runs over.
type ConversationLoader interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error)
}

// IterationPayload is the serialized data stored with an iteration task.
type IterationPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Summarize      bool      `json:"summarize"`
}

// IterationTask implements the Task interface for running one iteration
// over a stored conversation.
type IterationTask struct {
	id            uuid.UUID
	payload       IterationPayload
	conversations ConversationLoader
	executor      iteration.Executor
	persister     iteration.Persister
	config        iteration.Config
	logger        *slog.Logger

	mu     sync.Mutex
	status TaskStatus
}

// NewIterationTask creates a new iteration task with a fresh ID.
func NewIterationTask(
	payload IterationPayload,
	conversations ConversationLoader,
	executor iteration.Executor,
	persister iteration.Persister,
	config iteration.Config,
	logger *slog.Logger,
) (*IterationTask, error) {
	return newIterationTask(uuid.New(), payload, conversations, executor, persister, config, logger)
}

func newIterationTask(
	id uuid.UUID,
	payload IterationPayload,
	conversations ConversationLoader,
	executor iteration.Executor,
	persister iteration.Persister,
	config iteration.Config,
	logger *slog.Logger,
) (*IterationTask, error) {
	if conversations == nil {
		return nil, ErrNilConversationLoader
	}
	if executor == nil {
		return nil, ErrNilExecutor
	}
	if persister == nil {
		return nil, ErrNilPersister
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if payload.ConversationID == uuid.Nil {
		return nil, ErrEmptyConversationID
	}

	return &IterationTask{
		id:            id,
		payload:       payload,
		conversations: conversations,
		executor:      executor,
		persister:     persister,
		config:        config,
		logger: logger.With(
			"task_type", TaskTypeIteration,
			"task_id", id,
			"conversation_id", payload.ConversationID),
		status: TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *IterationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *IterationTask) Type() string {
	return TaskTypeIteration
}

// Payload returns the task data as a byte slice
func (t *IterationTask) Payload() []byte {
	data, err := json.Marshal(t.payload)
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *IterationTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *IterationTask) setStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

// Execute loads the conversation and runs one iteration over it with a
// dedicated orchestrator. Cancelling ctx cancels both provider calls and any
// wait between attempts.
func (t *IterationTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)
	t.logger.InfoContext(ctx, "starting iteration task", "summarize", t.payload.Summarize)

	if err := ctx.Err(); err != nil {
		t.setStatus(TaskStatusFailed)
		t.logger.ErrorContext(ctx, "task cancelled by context", "error", err)
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	conversation, err := t.conversations.GetConversation(ctx, t.payload.ConversationID)
	if err != nil {
		t.setStatus(TaskStatusFailed)
		t.logger.ErrorContext(ctx, "failed to load conversation", "error", err)
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	orchestrator, err := iteration.NewOrchestrator(ctx, t.executor, t.persister, t.config, t.logger)
	if err != nil {
		t.setStatus(TaskStatusFailed)
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	defer orchestrator.Cancel()

	model := conversation.Model
	if model.Name == "" {
		model = t.config.DefaultModel
		t.logger.DebugContext(ctx, "conversation has no model, using default", "model", model.Name)
	}

	if err := orchestrator.RunIteration(t.id, conversation.Turns, model, t.payload.Summarize); err != nil {
		t.setStatus(TaskStatusFailed)
		return fmt.Errorf("iteration failed: %w", err)
	}

	t.setStatus(TaskStatusCompleted)
	t.logger.InfoContext(ctx, "iteration task completed", "turn_count", len(conversation.Turns))
	return nil
}
