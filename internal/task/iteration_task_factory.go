package task

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/iteration"
)

// IterationTaskFactory creates IterationTask instances
type IterationTaskFactory struct {
	conversations ConversationLoader
	executor      iteration.Executor
	persister     iteration.Persister
	config        iteration.Config
	logger        *slog.Logger
}

// NewIterationTaskFactory creates a new factory for IterationTasks
func NewIterationTaskFactory(
	conversations ConversationLoader,
	executor iteration.Executor,
	persister iteration.Persister,
	config iteration.Config,
	logger *slog.Logger,
) *IterationTaskFactory {
	return &IterationTaskFactory{
		conversations: conversations,
		executor:      executor,
		persister:     persister,
		config:        config,
		logger:        logger,
	}
}

// CreateTask creates a new IterationTask for the specified conversation
func (f *IterationTaskFactory) CreateTask(conversationID uuid.UUID, summarize bool) (Task, error) {
	return NewIterationTask(
		IterationPayload{ConversationID: conversationID, Summarize: summarize},
		f.conversations,
		f.executor,
		f.persister,
		f.config,
		f.logger,
	)
}

// Decode rebuilds a stored iteration task, keeping its ID. It satisfies Decoder.
func (f *IterationTaskFactory) Decode(rec Record) (Task, error) {
	if rec.Type != TaskTypeIteration {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, rec.Type)
	}

	var payload IterationPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaskPayload, err)
	}

	return newIterationTask(
		rec.ID,
		payload,
		f.conversations,
		f.executor,
		f.persister,
		f.config,
		f.logger,
	)
}
