package generation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

// Possible turn roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single role-tagged entry of a conversation.
type Turn struct {
	Role    Role   `json:"role"    validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`

	// TaskID is the task that produced or requested this turn, if any
	TaskID uuid.UUID `json:"task_id,omitempty"`

	// SummaryID links the turn to a stored summary, if any
	SummaryID *uuid.UUID `json:"summary_id,omitempty"`
}

// Validate checks the turn and wraps failures in ErrInvalidRequest.
func (t Turn) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: turn: %v", ErrInvalidRequest, err)
	}
	return nil
}

// ModelDescriptor names the model a conversation runs against.
type ModelDescriptor struct {
	Name     string `json:"name"               validate:"required"`
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=gemini openai"`
}

// Validate checks the descriptor and wraps failures in ErrInvalidRequest.
func (m ModelDescriptor) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: model: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Request is one call to a provider.
type Request struct {
	SystemPrompt string `validate:"required"`
	Turns        []Turn `validate:"dive"`
	Model        string `validate:"required"`

	// Primary distinguishes the generation call from the summarization call.
	// It is forwarded to the provider and not interpreted by the Executor.
	Primary bool
}

// Validate checks the request and wraps failures in ErrInvalidRequest.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// CallName returns the label used for this call in logs and metrics.
func (r Request) CallName() string {
	if r.Primary {
		return "primary"
	}
	return "summary"
}

// Response is a successful provider result.
type Response struct {
	Text         string
	Model        string
	Primary      bool
	FinishReason string
}

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())
