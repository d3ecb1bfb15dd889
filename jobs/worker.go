package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// WorkerConfig collects what the invoice worker needs to start.
type WorkerConfig struct {
	RedisOpts       asynq.RedisClientOpt
	Logger          *slog.Logger
	Concurrency     int
	ShutdownTimeout time.Duration
}

// Worker processes invoice maintenance tasks and owns their cron schedule.
type Worker struct {
	redisOpts asynq.RedisClientOpt
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
	tasks     []string
}

// NewWorker builds a worker. Handlers and schedules are attached with
// Handle and Schedule before Run.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{QueueInvoices: 1},
		ShutdownTimeout: shutdown,
		Logger:          newAsynqLogger(logger),
		ErrorHandler:    asynq.ErrorHandlerFunc(taskFailureLogger(logger)),
	})
	return &Worker{redisOpts: cfg.RedisOpts, server: srv, mux: asynq.NewServeMux(), logger: logger}
}

// Handle routes tasks of taskType to h.
func (w *Worker) Handle(taskType string, h asynq.HandlerFunc) {
	w.mux.HandleFunc(taskType, h)
	w.tasks = append(w.tasks, taskType)
}

// Schedule enqueues task on every tick of the cron expression, evaluated in UTC.
func (w *Worker) Schedule(cronspec string, task *asynq.Task, opts ...asynq.Option) error {
	if task == nil {
		return errors.New("worker: schedule without task")
	}
	if w.scheduler == nil {
		w.scheduler = asynq.NewScheduler(w.redisOpts, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   newAsynqLogger(w.logger),
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
					w.logger.Warn("scheduled enqueue failed", slog.Any("error", err))
				}
			},
		})
	}
	if _, err := w.scheduler.Register(cronspec, task, opts...); err != nil {
		return fmt.Errorf("worker: schedule %s %q: %w", task.Type(), cronspec, err)
	}
	return nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("worker: start scheduler: %w", err)
		}
		defer w.scheduler.Shutdown()
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("worker: start server: %w", err)
	}
	w.logger.Info("worker started", slog.Any("tasks", w.tasks), slog.Bool("scheduler", w.scheduler != nil))

	<-ctx.Done()
	w.server.Shutdown()
	return ctx.Err()
}

func taskFailureLogger(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		logger.Error("task failed",
			slog.String("task", task.Type()),
			slog.Int("retry", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err))
	}
}
