package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/generation"
	"github.com/phrazzld/scry-worker/internal/iteration"
	"github.com/phrazzld/scry-worker/internal/platform/logger"
	"github.com/phrazzld/scry-worker/internal/store"
)

// PostgresResponseStore implements store.ResponseStore and is the persister
// the iteration orchestrator hands each completed response to.
type PostgresResponseStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresResponseStore creates a new PostgresResponseStore.
// If logger is nil, a default logger will be used.
func NewPostgresResponseStore(db store.DBTX, logger *slog.Logger) *PostgresResponseStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresResponseStore{
		db:     db,
		logger: logger.With(slog.String("component", "response_store")),
	}
}

var (
	_ store.ResponseStore = (*PostgresResponseStore)(nil)
	_ iteration.Persister = (*PostgresResponseStore)(nil)
)

// SaveResponse implements store.ResponseStore.SaveResponse.
// Returns a *store.StoreError wrapping store.ErrTaskNotFound if taskID does
// not reference a stored task.
func (s *PostgresResponseStore) SaveResponse(ctx context.Context, taskID uuid.UUID, resp *generation.Response) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if resp == nil {
		return fmt.Errorf("%w: response cannot be nil", store.ErrInvalidEntity)
	}

	kind := store.ResponseKindSummary
	if resp.Primary {
		kind = store.ResponseKindPrimary
	}

	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (id, task_id, kind, model, text, finish_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		id,
		taskID,
		kind,
		resp.Model,
		resp.Text,
		resp.FinishReason,
		time.Now().UTC(),
	)
	if err != nil {
		log.ErrorContext(ctx, "failed to save response",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("kind", kind))
		if IsForeignKeyViolation(err) {
			return store.NewStoreError("response", "create",
				fmt.Sprintf("task %s does not exist", taskID), store.ErrTaskNotFound)
		}
		return store.NewStoreError("response", "create",
			fmt.Sprintf("failed to save %s response", kind), MapError(err))
	}

	log.DebugContext(ctx, "response saved",
		slog.String("response_id", id.String()),
		slog.String("task_id", taskID.String()),
		slog.String("kind", kind),
		slog.Int("text_length", len(resp.Text)))
	return nil
}

// ListResponses implements store.ResponseStore.ListResponses.
func (s *PostgresResponseStore) ListResponses(ctx context.Context, taskID uuid.UUID) ([]store.StoredResponse, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, kind, model, text, finish_reason, created_at
		FROM responses
		WHERE task_id = $1
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		log.ErrorContext(ctx, "failed to query responses",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, store.NewStoreError("response", "list", "failed to query responses", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var responses []store.StoredResponse
	for rows.Next() {
		var r store.StoredResponse
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Kind, &r.Model, &r.Text, &r.FinishReason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating response rows: %w", err)
	}

	return responses, nil
}
