package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface for testing
type MockTaskStore struct {
	mutex           sync.RWMutex
	records         map[uuid.UUID]Record
	taskStatusTimes map[uuid.UUID]time.Time
	SaveFn          func(ctx context.Context, task Task) error
	UpdateStatusFn  func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error
	ClaimFn         func(ctx context.Context, taskID uuid.UUID) (bool, error)
	GetPendingFn    func(ctx context.Context) ([]Record, error)
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	store := &MockTaskStore{
		records:         make(map[uuid.UUID]Record),
		taskStatusTimes: make(map[uuid.UUID]time.Time),
	}

	store.SaveFn = func(ctx context.Context, task Task) error {
		store.Put(Record{
			ID:      task.ID(),
			Type:    task.Type(),
			Payload: task.Payload(),
			Status:  task.Status(),
		})
		return nil
	}

	store.UpdateStatusFn = func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		rec, exists := store.records[taskID]
		if !exists {
			return nil // Simulate "not found" as a no-op for testing simplicity
		}

		now := time.Now()
		rec.Status = status
		rec.ErrorMessage = errorMsg
		rec.UpdatedAt = now
		store.records[taskID] = rec
		store.taskStatusTimes[taskID] = now
		return nil
	}

	return store
}

// Put inserts or replaces a record directly.
func (s *MockTaskStore) Put(rec Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	s.records[rec.ID] = rec
	s.taskStatusTimes[rec.ID] = rec.UpdatedAt
}

// Get returns the stored record for id.
func (s *MockTaskStore) Get(id uuid.UUID) (Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// SetStatusTime backdates the last status change of a task.
func (s *MockTaskStore) SetStatusTime(id uuid.UUID, at time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.taskStatusTimes[id] = at
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	return s.SaveFn(ctx, task)
}

// ClaimTask moves a pending task to processing
func (s *MockTaskStore) ClaimTask(ctx context.Context, taskID uuid.UUID) (bool, error) {
	if s.ClaimFn != nil {
		return s.ClaimFn(ctx, taskID)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.records[taskID]
	if !exists || rec.Status != TaskStatusPending {
		return false, nil
	}

	now := time.Now()
	rec.Status = TaskStatusProcessing
	rec.UpdatedAt = now
	s.records[taskID] = rec
	s.taskStatusTimes[taskID] = now
	return true, nil
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status TaskStatus,
	errorMsg string,
) error {
	return s.UpdateStatusFn(ctx, taskID, status, errorMsg)
}

// GetPendingTasks retrieves all tasks with "pending" status
func (s *MockTaskStore) GetPendingTasks(ctx context.Context) ([]Record, error) {
	if s.GetPendingFn != nil {
		return s.GetPendingFn(ctx)
	}
	return s.byStatus(TaskStatusPending, 0), nil
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error) {
	return s.byStatus(TaskStatusProcessing, olderThan), nil
}

func (s *MockTaskStore) byStatus(status TaskStatus, olderThan time.Duration) []Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []Record
	now := time.Now()
	for id, rec := range s.records {
		if rec.Status != status {
			continue
		}
		// If olderThan is zero, include all tasks with the status
		if olderThan == 0 || now.Sub(s.taskStatusTimes[id]) > olderThan {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
