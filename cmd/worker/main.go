package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// Schedules are evaluated in UTC.
var schedules = map[string]string{
	jobs.TaskRecurringProcess: "30 0 * * *",
	jobs.TaskReconcileAuto:    "0 * * * *",
	jobs.TaskFraudScan:        "0 2 * * *",
	jobs.TaskGLIntegrity:      "0 3 * * *",
}

func main() {
	if app.SkipStartup("worker") {
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
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	services := app.NewServices(cfg, pool, redisClient, logger)
	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	recurringJob := &jobs.RecurringJob{Service: services.Recurring, Logger: logger, Metrics: jobMetrics}
	reconcileJob := &jobs.ReconcileJob{Service: services.Reconcile, Companies: services.Companies, Logger: logger, Metrics: jobMetrics}
	fraudJob := &jobs.FraudScanJob{Detector: services.Fraud, Logger: logger, Metrics: jobMetrics}
	integrityJob := &jobs.GLIntegrityJob{Ledger: services.Reports, Companies: services.Companies, Logger: logger, Metrics: jobMetrics}

	var cron []jobs.CronRegistration
	for _, taskType := range jobs.TaskTypes() {
		task, err := jobs.NewTask(taskType, jobs.CompanyPayload{})
		if err != nil {
			logger.Error("build task", slog.String("type", taskType), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    schedules[taskType],
			Task:    task,
			Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)},
		})
	}

	redisOpt, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpt,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRecurringProcess, Handler: recurringJob.Handle},
			{Type: jobs.TaskReconcileAuto, Handler: reconcileJob.Handle},
			{Type: jobs.TaskFraudScan, Handler: fraudJob.Handle},
			{Type: jobs.TaskGLIntegrity, Handler: integrityJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("starting worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
