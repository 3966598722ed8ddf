package task

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestNewTaskQueue(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(10, setupTestLogger())

	assert.NotNil(t, queue)
	assert.Equal(t, 10, cap(queue.tasks))
	assert.False(t, queue.closed)
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(2, setupTestLogger())

	task1 := CreateMockTaskWithPayload("one")
	require.NoError(t, queue.Enqueue(task1))
	require.NoError(t, queue.Enqueue(CreateMockTaskWithPayload("two")))

	err := queue.Enqueue(CreateMockTaskWithPayload("three"))
	assert.ErrorIs(t, err, ErrQueueFull)

	<-queue.tasks
	assert.NoError(t, queue.Enqueue(CreateMockTaskWithPayload("three")))
}

func TestEnqueueRejectsActiveTask(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(5, setupTestLogger())
	task := CreateMockTaskWithPayload("once")

	require.NoError(t, queue.Enqueue(task))
	assert.True(t, queue.IsActive(task.ID()))

	// Still active while a worker runs it
	<-queue.GetChannel()
	assert.ErrorIs(t, queue.Enqueue(task), ErrAlreadyQueued)

	queue.Done(task.ID())
	assert.False(t, queue.IsActive(task.ID()))
	assert.NoError(t, queue.Enqueue(task))
}

func TestEnqueueFullDoesNotMarkActive(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, setupTestLogger())
	require.NoError(t, queue.Enqueue(CreateMockTaskWithPayload("first")))

	second := CreateMockTaskWithPayload("second")
	require.ErrorIs(t, queue.Enqueue(second), ErrQueueFull)
	assert.False(t, queue.IsActive(second.ID()))
}

func TestClose(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(10, setupTestLogger())

	task := CreateMockTaskWithPayload("before close")
	require.NoError(t, queue.Enqueue(task))

	queue.Close()
	queue.Close()
	assert.True(t, queue.closed)

	assert.ErrorIs(t, queue.Enqueue(CreateMockTaskWithPayload("after close")), ErrQueueClosed)

	received := <-queue.GetChannel()
	assert.Equal(t, task.ID(), received.ID())

	select {
	case _, ok := <-queue.GetChannel():
		assert.False(t, ok, "Channel should be closed")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timed out waiting for closed channel read")
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(100, setupTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, queue.Enqueue(CreateMockTaskWithPayload("concurrent")))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, queue.GetChannel(), 50)
}
