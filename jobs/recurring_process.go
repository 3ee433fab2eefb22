package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/recurring"
)

// RecurringProcessor fires due profiles.
type RecurringProcessor interface {
	ProcessDueProfiles(ctx context.Context, companyID int64) (recurring.Result, error)
}

// RecurringJob is the timer path of recurring billing.
type RecurringJob struct {
	Service RecurringProcessor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskRecurringProcess tasks.
func (j *RecurringJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("recurring job: handler not configured")
	}
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	tracker := metricsOr(j.Metrics).Track(TaskRecurringProcess)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskRecurringProcess).With(slog.Int64("company_id", payload.CompanyID))
	result, err := j.Service.ProcessDueProfiles(ctx, payload.CompanyID)
	if err != nil {
		logger.Error("recurring run failed", slog.Any("error", err))
		return err
	}
	metricsOr(j.Metrics).AddRecurringInvoices("created", len(result.InvoicesCreated))
	metricsOr(j.Metrics).AddRecurringInvoices("failed", len(result.Failed))
	logger.Info("recurring run finished",
		slog.Int("processed", result.Processed),
		slog.Int("skipped", result.Skipped),
		slog.Int("created", len(result.InvoicesCreated)),
		slog.Int("failed", len(result.Failed)),
	)
	return nil
}

func metricsOr(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
