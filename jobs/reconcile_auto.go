package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/reconcile"
)

// Reconciler runs auto reconciliation for one company.
type Reconciler interface {
	AutoReconcile(ctx context.Context, companyID int64, threshold float64) (reconcile.Result, error)
}

// CompanyLister enumerates tenants for jobs that run across companies.
type CompanyLister interface {
	ActiveIDs(ctx context.Context) ([]int64, error)
}

// ReconcileJob runs auto reconciliation on a schedule.
type ReconcileJob struct {
	Service   Reconciler
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskReconcileAuto tasks. A failing company does not stop the
// others; the first error is returned so asynq retries the task.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("reconcile job: handler not configured")
	}
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	tracker := metricsOr(j.Metrics).Track(TaskReconcileAuto)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskReconcileAuto)
	companies, err := scope(ctx, j.Companies, payload.CompanyID)
	if err != nil {
		logger.Error("load companies", slog.Any("error", err))
		return err
	}
	var firstErr error
	for _, companyID := range companies {
		result, err := j.Service.AutoReconcile(ctx, companyID, payload.Threshold)
		if err != nil {
			logger.Error("auto reconcile failed", slog.Int64("company_id", companyID), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metricsOr(j.Metrics).AddReconcileMatches(companyID, result.Matched)
		logger.Info("auto reconcile finished",
			slog.Int64("company_id", companyID),
			slog.Int("matched", result.Matched),
			slog.Int("unmatched", result.Unmatched),
		)
	}
	return firstErr
}

// scope resolves the companies a task applies to.
func scope(ctx context.Context, lister CompanyLister, companyID int64) ([]int64, error) {
	if companyID > 0 {
		return []int64{companyID}, nil
	}
	if lister == nil {
		return nil, errors.New("jobs: company lister not configured")
	}
	return lister.ActiveIDs(ctx)
}
