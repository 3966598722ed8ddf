package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/generation"
)

// Conversation is an ordered list of turns bound to the model that answers it.
type Conversation struct {
	ID        uuid.UUID
	Model     generation.ModelDescriptor
	Turns     []generation.Turn
	CreatedAt time.Time
}

// Validate checks the conversation before it is stored. An empty model
// descriptor is allowed; such conversations run on the worker's default model.
func (c *Conversation) Validate() error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("%w: conversation ID cannot be empty", ErrInvalidEntity)
	}
	if c.Model != (generation.ModelDescriptor{}) {
		if err := c.Model.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
		}
	}
	for i, turn := range c.Turns {
		if err := turn.Validate(); err != nil {
			return fmt.Errorf("%w: turn %d: %v", ErrInvalidEntity, i, err)
		}
	}
	return nil
}

// ConversationStore defines the interface for conversation persistence.
type ConversationStore interface {
	// CreateConversation stores a conversation and its turns atomically.
	// Returns ErrInvalidEntity if validation fails or ErrDuplicate if the ID exists.
	CreateConversation(ctx context.Context, conversation *Conversation) error

	// GetConversation retrieves a conversation with its turns in order.
	// Returns ErrConversationNotFound if it does not exist.
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)
}

// StoredResponse is a generation response as persisted for a task.
type StoredResponse struct {
	ID           uuid.UUID
	TaskID       uuid.UUID
	Kind         string
	Model        string
	Text         string
	FinishReason string
	CreatedAt    time.Time
}

// Response kinds.
const (
	ResponseKindPrimary = "primary"
	ResponseKindSummary = "summary"
)

// ResponseStore defines the interface for response persistence.
type ResponseStore interface {
	// SaveResponse records one response produced for taskID.
	SaveResponse(ctx context.Context, taskID uuid.UUID, resp *generation.Response) error

	// ListResponses returns the responses recorded for taskID, oldest first.
	ListResponses(ctx context.Context, taskID uuid.UUID) ([]StoredResponse, error)
}
