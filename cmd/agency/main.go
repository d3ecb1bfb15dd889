package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/hexaforge/agency-office/cmd/agency/cli"
	"github.com/hexaforge/agency-office/internal/app"
	"github.com/hexaforge/agency-office/internal/documents"
	documentshttp "github.com/hexaforge/agency-office/internal/documents/http"
	"github.com/hexaforge/agency-office/internal/observability"
	"github.com/hexaforge/agency-office/internal/platform/cache"
	"github.com/hexaforge/agency-office/internal/platform/db"
	"github.com/hexaforge/agency-office/internal/revenue"
	"github.com/hexaforge/agency-office/jobs"
)

const usage = `usage: agency [command]

commands:
  serve                      run the HTTP API (default)
  jobs trigger <job>         enqueue a job (sweep-overdue)
  jobs stats                 print default queue statistics
  render -kind K -in FILE    render an exported document JSON to PDF
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		os.Exit(serve())
	case "jobs":
		os.Exit(jobsCommand(args))
	case "render":
		os.Exit(renderCommand(args))
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: "agency-api"})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer dbpool.Close()

	if err := documents.EnsureSchema(ctx, dbpool); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		return 1
	}

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	var redisClient *redis.Client
	if client, err := cache.New(ctx, redisOpts); err != nil {
		if cfg.SequenceBackend == app.SequenceRedis {
			logger.Error("connect redis", slog.Any("error", err))
			return 1
		}
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	var rdb redis.Cmdable
	if redisClient != nil {
		rdb = redisClient
	}
	services, err := app.NewServices(cfg, dbpool, rdb, metrics, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		return 1
	}

	documentsHandler := documentshttp.NewHandler(logger, services.Documents, services.Numbers, services.Renderer,
		documentshttp.WithRenderObserver(metrics))
	revenueHandler := revenue.NewHandler(logger, revenue.NewService(services.Documents))

	inspector := asynq.NewInspector(asynqRedisOpt(cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(asynqRedisOpt(cfg))
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DocumentsHandler: documentsHandler,
		RevenueHandler:   revenueHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("sequence_backend", cfg.SequenceBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}

func jobsCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: load config: %v\n", err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jc := cli.NewJobsCLI(asynqRedisOpt(cfg))
	defer jc.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		info, err := jc.Trigger(ctx, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jc.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		_ = json.NewEncoder(os.Stdout).Encode(stats)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	return 0
}

func renderCommand(args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	kind := fs.String("kind", "invoice", "document kind: quotation, proposal or invoice")
	in := fs.String("in", "", "path to the exported document JSON")
	out := fs.String("out", ".", "output directory")
	company := fs.String("company", os.Getenv("COMPANY_NAME"), "company name printed in the header")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *in == "" {
		fmt.Fprintln(os.Stderr, "render: -in is required")
		return 2
	}
	return cli.RenderCommand(cli.RenderOptions{
		Kind:      *kind,
		InputPath: *in,
		OutputDir: *out,
		Company:   *company,
	})
}

func asynqRedisOpt(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
