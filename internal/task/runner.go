package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-worker/internal/generation"
	"github.com/phrazzld/scry-worker/internal/platform/logger"
	"github.com/phrazzld/scry-worker/internal/redact"
)

// statusUpdateTimeout bounds status writes made after the runner context ends.
const statusUpdateTimeout = 5 * time.Second

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration

	// PollInterval defines how often the store is polled for pending tasks
	// written by other processes. Zero disables polling.
	PollInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		PollInterval:           10 * time.Second,
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	decodersMu sync.RWMutex
	decoders   map[string]Decoder
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultTaskRunnerConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	return &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		decoders:   make(map[string]Decoder),
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Register installs the decoder used to rebuild stored tasks of taskType.
func (r *TaskRunner) Register(taskType string, decode Decoder) {
	r.decodersMu.Lock()
	defer r.decodersMu.Unlock()
	r.decoders[taskType] = decode
}

// Submit persists a new task and adds it to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		// The task stays pending in the store and is picked up by the poller.
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Start recovers unfinished tasks and begins processing
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	if r.config.PollInterval > 0 {
		r.wg.Add(1)
		go r.pendingTaskPoller()
	}

	r.logger.Info("task runner started",
		"worker_count", r.config.WorkerCount,
		"queue_size", r.config.QueueSize,
		"poll_interval", r.config.PollInterval)
	return nil
}

// Stop cancels running tasks and waits for all workers to exit.
// Tasks that fail because Stop cancelled them are returned to pending.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
	r.logger.Info("task runner stopped")
}

// Recover loads any unfinished tasks from the database
func (r *TaskRunner) Recover() error {
	ctx := r.ctx

	pending, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	// Tasks left in processing were interrupted by a crash
	processing, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.InfoContext(ctx, "recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range pending {
		r.enqueueRecord(ctx, rec)
	}

	for _, rec := range processing {
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending, "Reset after recovery"); err != nil {
			r.logger.ErrorContext(ctx, "failed to reset processing task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		r.enqueueRecord(ctx, rec)
	}

	return nil
}

// enqueueRecord decodes rec and queues it unless it is already active.
func (r *TaskRunner) enqueueRecord(ctx context.Context, rec Record) {
	if r.queue.IsActive(rec.ID) {
		return
	}

	task, err := r.decode(rec)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to decode stored task",
			"task_id", rec.ID,
			"task_type", rec.Type,
			"error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusFailed, redact.Error(err)); updateErr != nil {
			r.logger.ErrorContext(ctx, "failed to mark undecodable task as failed",
				"task_id", rec.ID,
				"error", updateErr)
		}
		return
	}

	switch err := r.queue.Enqueue(task); {
	case err == nil:
	case errors.Is(err, ErrAlreadyQueued):
	default:
		r.logger.WarnContext(ctx, "failed to requeue task, leaving it pending",
			"task_id", rec.ID,
			"task_type", rec.Type,
			"error", err)
	}
}

func (r *TaskRunner) decode(rec Record) (Task, error) {
	r.decodersMu.RLock()
	decode, ok := r.decoders[rec.Type]
	r.decodersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, rec.Type)
	}
	return decode(rec)
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	defer r.queue.Done(task.ID())

	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(r.ctx, log)

	claimed, err := r.store.ClaimTask(ctx, task.ID())
	if err != nil {
		log.ErrorContext(ctx, "failed to claim task", "error", err)
		return
	}
	if !claimed {
		log.DebugContext(ctx, "task is no longer pending, skipping")
		return
	}

	log.InfoContext(ctx, "processing task")
	err = r.execute(ctx, task)

	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusUpdateTimeout)
	defer cancel()

	switch {
	case err == nil:
		log.InfoContext(ctx, "task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(statusCtx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			log.ErrorContext(ctx, "failed to update task status to completed", "error", updateErr)
		}

	case r.ctx.Err() != nil && isCancellation(err):
		log.WarnContext(ctx, "task interrupted by shutdown, returning it to pending", "error", err)
		if updateErr := r.store.UpdateTaskStatus(statusCtx, task.ID(), TaskStatusPending,
			"Reset after shutdown"); updateErr != nil {
			log.ErrorContext(ctx, "failed to reset interrupted task", "error", updateErr)
		}

	default:
		log.ErrorContext(ctx, "task execution failed", "error", err)
		if updateErr := r.store.UpdateTaskStatus(statusCtx, task.ID(), TaskStatusFailed, redact.Error(err)); updateErr != nil {
			log.ErrorContext(ctx, "failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(task, err)
	}
}

// isCancellation reports whether err was caused by cancelling the task's context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, generation.ErrCancelled)
}

// execute runs the task and converts a panic into an error.
func (r *TaskRunner) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return task.Execute(ctx)
}

// stuckTaskMonitor periodically checks for tasks that have been in "processing"
// state for too long and resets them
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.resetStuckTasks(r.ctx)
		}
	}
}

func (r *TaskRunner) resetStuckTasks(ctx context.Context) {
	stuck, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to check for stuck tasks", "error", err)
		return
	}

	var reset int
	for _, rec := range stuck {
		// Still running in this process
		if r.queue.IsActive(rec.ID) {
			continue
		}

		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending,
			"Reset after being stuck in processing state"); err != nil {
			r.logger.ErrorContext(ctx, "failed to reset stuck task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}

		reset++
		r.enqueueRecord(ctx, rec)
	}

	if reset > 0 {
		r.logger.InfoContext(ctx, "reset stuck tasks", "count", reset)
	}
}

// pendingTaskPoller picks up pending tasks inserted by other processes.
func (r *TaskRunner) pendingTaskPoller() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			pending, err := r.store.GetPendingTasks(r.ctx)
			if err != nil {
				if r.ctx.Err() == nil {
					r.logger.ErrorContext(r.ctx, "failed to poll pending tasks", "error", err)
				}
				continue
			}
			for _, rec := range pending {
				r.enqueueRecord(r.ctx, rec)
			}
		}
	}
}

// IsActive reports whether the task is queued or running in this runner.
func (r *TaskRunner) IsActive(id uuid.UUID) bool {
	return r.queue.IsActive(id)
}
