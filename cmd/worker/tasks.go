package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/redact"
	"github.com/phrazzld/scry-worker/internal/store"
	"github.com/phrazzld/scry-worker/internal/task"
)

// SubmitIterationRequest is the body of POST /tasks.
type SubmitIterationRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Summarize      bool   `json:"summarize"`
}

// SubmitIterationResponse describes an accepted task.
type SubmitIterationResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type conversationGetter interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error)
}

type iterationTaskCreator interface {
	CreateTask(conversationID uuid.UUID, summarize bool) (task.Task, error)
}

type taskSubmitter interface {
	Submit(ctx context.Context, t task.Task) error
}

// TaskHandler lets other services enqueue iterations for stored conversations.
type TaskHandler struct {
	conversations conversationGetter
	factory       iterationTaskCreator
	runner        taskSubmitter
	validator     *validator.Validate
	logger        *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(
	conversations conversationGetter,
	factory iterationTaskCreator,
	runner taskSubmitter,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		conversations: conversations,
		factory:       factory,
		runner:        runner,
		validator:     validator.New(),
		logger:        logger.With("component", "task_handler"),
	}
}

// SubmitIteration handles POST /tasks requests
func (h *TaskHandler) SubmitIteration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitIterationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if _, err := h.conversations.GetConversation(ctx, conversationID); err != nil {
		if store.IsNotFoundError(err) {
			respondWithError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to load conversation",
			"conversation_id", conversationID,
			"error", redact.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	t, err := h.factory.CreateTask(conversationID, req.Summarize)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create iteration task",
			"conversation_id", conversationID,
			"error", redact.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create task")
		return
	}

	if err := h.runner.Submit(ctx, t); err != nil {
		// A full or closed queue leaves the saved task pending for the poller.
		if !errors.Is(err, task.ErrQueueFull) && !errors.Is(err, task.ErrQueueClosed) {
			h.logger.ErrorContext(ctx, "failed to submit iteration task",
				"task_id", t.ID(),
				"error", redact.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to submit task")
			return
		}
		h.logger.WarnContext(ctx, "task saved but not queued, leaving it to the poller",
			"task_id", t.ID(),
			"error", err)
	}

	h.logger.InfoContext(ctx, "iteration task accepted",
		"task_id", t.ID(),
		"conversation_id", conversationID,
		"summarize", req.Summarize)

	respondWithJSON(w, http.StatusAccepted, SubmitIterationResponse{
		TaskID: t.ID().String(),
		Status: string(task.TaskStatusPending),
	})
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message})
}
