package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/hexaforge/agency-office/internal/app"
	"github.com/hexaforge/agency-office/internal/documents"
	jobmetrics "github.com/hexaforge/agency-office/internal/jobs"
	"github.com/hexaforge/agency-office/internal/numbering"
	"github.com/hexaforge/agency-office/internal/platform/db"
	"github.com/hexaforge/agency-office/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: "agency-worker"})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The sweep never allocates numbers, so the generator runs without a recorder.
	numbers := numbering.NewGenerator(numbering.NewPGAllocator(pool), logger)
	service := documents.NewService(documents.NewRepository(pool), numbers, logger,
		documents.WithPaymentTerms(cfg.InvoicePaymentTerms))
	sweepJob := jobs.NewOverdueSweepJob(service, logger, jobmetrics.NewMetrics(nil))

	sweepTask, err := jobs.NewSweepOverdueTask("scheduler")
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
	})
	worker.Handle(jobs.TaskInvoicesSweepOverdue, sweepJob.Handle)
	if err := worker.Schedule(cfg.OverdueSweepCron, sweepTask); err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
