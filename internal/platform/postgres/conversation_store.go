package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/generation"
	"github.com/phrazzld/scry-worker/internal/platform/logger"
	"github.com/phrazzld/scry-worker/internal/store"
)

// PostgresConversationStore implements the store.ConversationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresConversationStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresConversationStore creates a new PostgreSQL implementation of the
// ConversationStore interface. If logger is nil, a default logger will be used.
func NewPostgresConversationStore(db *sql.DB, logger *slog.Logger) *PostgresConversationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresConversationStore{
		db:     db,
		logger: logger.With(slog.String("component", "conversation_store")),
	}
}

// Ensure PostgresConversationStore implements store.ConversationStore interface
var _ store.ConversationStore = (*PostgresConversationStore)(nil)

// CreateConversation implements store.ConversationStore.CreateConversation.
// The conversation row and all of its turns are written in one transaction.
func (s *PostgresConversationStore) CreateConversation(ctx context.Context, conversation *store.Conversation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := conversation.Validate(); err != nil {
		log.WarnContext(ctx, "conversation validation failed during create",
			slog.String("error", err.Error()),
			slog.String("conversation_id", conversation.ID.String()))
		return err
	}

	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, model_name, model_provider, created_at)
			VALUES ($1, $2, $3, $4)
		`,
			conversation.ID,
			conversation.Model.Name,
			conversation.Model.Provider,
			conversation.CreatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return store.NewStoreError("conversation", "create",
					fmt.Sprintf("conversation %s already exists", conversation.ID), store.ErrDuplicate)
			}
			return store.NewStoreError("conversation", "create", "failed to insert conversation", MapError(err))
		}

		for i, turn := range conversation.Turns {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_turns
					(conversation_id, position, role, content, task_id, summary_id)
				VALUES ($1, $2, $3, $4, $5, $6)
			`,
				conversation.ID,
				i,
				string(turn.Role),
				turn.Content,
				uuid.NullUUID{UUID: turn.TaskID, Valid: turn.TaskID != uuid.Nil},
				nullUUID(turn.SummaryID),
			)
			if err != nil {
				return store.NewStoreError("conversation", "create",
					fmt.Sprintf("failed to insert turn %d", i), MapError(err))
			}
		}

		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to create conversation",
			slog.String("error", err.Error()),
			slog.String("conversation_id", conversation.ID.String()))
		return err
	}

	log.InfoContext(ctx, "conversation created successfully",
		slog.String("conversation_id", conversation.ID.String()),
		slog.Int("turn_count", len(conversation.Turns)))
	return nil
}

// GetConversation implements store.ConversationStore.GetConversation.
// Returns store.ErrConversationNotFound if the conversation does not exist.
func (s *PostgresConversationStore) GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.DebugContext(ctx, "retrieving conversation by ID", slog.String("conversation_id", id.String()))

	conversation := &store.Conversation{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT model_name, model_provider, created_at
		FROM conversations
		WHERE id = $1
	`, id).Scan(
		&conversation.Model.Name,
		&conversation.Model.Provider,
		&conversation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.DebugContext(ctx, "conversation not found", slog.String("conversation_id", id.String()))
			return nil, store.ErrConversationNotFound
		}
		log.ErrorContext(ctx, "failed to get conversation",
			slog.String("error", err.Error()),
			slog.String("conversation_id", id.String()))
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, task_id, summary_id
		FROM conversation_turns
		WHERE conversation_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		log.ErrorContext(ctx, "failed to query conversation turns",
			slog.String("error", err.Error()),
			slog.String("conversation_id", id.String()))
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var turn generation.Turn
		var role string
		var taskID, summaryID uuid.NullUUID

		if err := rows.Scan(&role, &turn.Content, &taskID, &summaryID); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}

		turn.Role = generation.Role(role)
		if taskID.Valid {
			turn.TaskID = taskID.UUID
		}
		if summaryID.Valid {
			turn.SummaryID = &summaryID.UUID
		}
		conversation.Turns = append(conversation.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation turns: %w", err)
	}

	return conversation, nil
}

// nullUUID converts an optional ID to its nullable column value.
func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
