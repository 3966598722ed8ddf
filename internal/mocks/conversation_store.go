package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/store"
)

// MockConversationStore implements store.ConversationStore for testing.
// Without function fields it keeps conversations in memory.
type MockConversationStore struct {
	CreateConversationFn func(ctx context.Context, conversation *store.Conversation) error
	GetConversationFn    func(ctx context.Context, id uuid.UUID) (*store.Conversation, error)

	mu            sync.Mutex
	conversations map[uuid.UUID]*store.Conversation
}

// CreateConversation implements store.ConversationStore
func (m *MockConversationStore) CreateConversation(ctx context.Context, conversation *store.Conversation) error {
	if m.CreateConversationFn != nil {
		return m.CreateConversationFn(ctx, conversation)
	}
	if err := conversation.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conversations == nil {
		m.conversations = make(map[uuid.UUID]*store.Conversation)
	}
	if _, ok := m.conversations[conversation.ID]; ok {
		return store.ErrDuplicate
	}
	m.conversations[conversation.ID] = conversation
	return nil
}

// GetConversation implements store.ConversationStore
func (m *MockConversationStore) GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	if m.GetConversationFn != nil {
		return m.GetConversationFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[id]
	if !ok {
		return nil, store.ErrConversationNotFound
	}
	return conversation, nil
}
