package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-worker/internal/config"
	"github.com/phrazzld/scry-worker/internal/generation"
	"github.com/phrazzld/scry-worker/internal/iteration"
	"github.com/phrazzld/scry-worker/internal/platform/gemini"
	"github.com/phrazzld/scry-worker/internal/platform/openai"
	"github.com/phrazzld/scry-worker/internal/platform/postgres"
	"github.com/phrazzld/scry-worker/internal/store"
	"github.com/phrazzld/scry-worker/internal/task"
)

// shutdownTimeout bounds the ops server shutdown.
const shutdownTimeout = 10 * time.Second

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore         task.TaskStore
	conversationStore store.ConversationStore
	responseStore     *postgres.PostgresResponseStore

	provider    generation.Provider
	executor    *generation.Executor
	taskRunner  *task.TaskRunner
	taskHandler *TaskHandler
}

// newApplication creates a new application instance with all dependencies initialized.
// The task runner is created and its decoders registered, but it is not started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.conversationStore = postgres.NewPostgresConversationStore(db, logger)
	app.responseStore = postgres.NewPostgresResponseStore(db, logger)

	var err error
	app.provider, err = newProvider(ctx, logger.With("component", "llm_provider"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	app.executor, err = generation.NewExecutor(app.provider, logger,
		generation.WithRetryPolicy(cfg.LLM.RetryPolicy()))
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	prompts, err := iteration.LoadPrompts(cfg.LLM.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	factory := task.NewIterationTaskFactory(
		app.conversationStore,
		app.executor,
		app.responseStore,
		iteration.Config{
			Prompts:    prompts,
			MaxRetries: app.executor.Policy().MaxAttempts,
			DefaultModel: generation.ModelDescriptor{
				Name:     cfg.LLM.ModelName,
				Provider: cfg.LLM.Provider,
			},
		},
		logger,
	)

	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		WorkerCount:            cfg.Task.WorkerCount,
		QueueSize:              cfg.Task.QueueSize,
		StuckTaskAge:           cfg.Task.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Task.StuckTaskCheckInterval,
		PollInterval:           cfg.Task.PollInterval,
	}, logger)
	app.taskRunner.Register(task.TaskTypeIteration, factory.Decode)
	app.taskHandler = NewTaskHandler(app.conversationStore, factory, app.taskRunner, logger)

	logger.InfoContext(ctx, "application initialized successfully",
		"provider", cfg.LLM.Provider,
		"initial_delay_ms", cfg.LLM.InitialDelayMS,
		"max_delay_ms", cfg.LLM.MaxDelayMS)
	return app, nil
}

// newProvider selects the generation provider named by cfg.Provider.
func newProvider(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		p, err := gemini.NewProvider(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		p, err := openai.NewProvider(logger, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

// Run starts the task runner and the ops server and blocks until ctx is
// cancelled or the ops server fails. Cancelling ctx cancels in-flight
// iterations, including any wait between attempts.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.OpsPort),
		Handler:           newOpsRouter(app.db, app.taskHandler, app.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting ops server", "port", app.config.Server.OpsPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			app.logger.Error("ops server failed", "error", err)
			runErr = fmt.Errorf("ops server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("ops server shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("ops server shutdown failed: %w", err)
		}
	}

	return runErr
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
