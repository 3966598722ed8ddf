package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/generation"
)

// SavedResponse is one recorded SaveResponse call
type SavedResponse struct {
	TaskID   uuid.UUID
	Response *generation.Response
}

// MockPersister implements iteration.Persister for testing
type MockPersister struct {
	// SaveResponseFn allows test cases to mock the SaveResponse behavior
	SaveResponseFn func(ctx context.Context, taskID uuid.UUID, resp *generation.Response) error

	mu    sync.Mutex
	saved []SavedResponse
}

// SaveResponse implements iteration.Persister
func (m *MockPersister) SaveResponse(ctx context.Context, taskID uuid.UUID, resp *generation.Response) error {
	m.mu.Lock()
	m.saved = append(m.saved, SavedResponse{TaskID: taskID, Response: resp})
	m.mu.Unlock()

	if m.SaveResponseFn != nil {
		return m.SaveResponseFn(ctx, taskID, resp)
	}
	return nil
}

// Saved returns a copy of every recorded SaveResponse call
func (m *MockPersister) Saved() []SavedResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SavedResponse, len(m.saved))
	copy(out, m.saved)
	return out
}
