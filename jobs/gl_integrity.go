package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// IntegrityChecker verifies a company's ledger.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, companyID int64, asOf time.Time) (reports.Integrity, error)
}

// GLIntegrityJob checks that every ledger balances. Violations are logged and
// counted; they do not fail the task.
type GLIntegrityJob struct {
	Ledger    IntegrityChecker
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// Handle processes TaskGLIntegrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("gl integrity: handler not configured")
	}
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	tracker := metricsOr(j.Metrics).Track(TaskGLIntegrity)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskGLIntegrity)
	companies, err := scope(ctx, j.Companies, payload.CompanyID)
	if err != nil {
		logger.Error("load companies", slog.Any("error", err))
		return err
	}
	asOf := j.now()
	violations := 0
	for _, companyID := range companies {
		report, err := j.Ledger.CheckIntegrity(ctx, companyID, asOf)
		if err != nil {
			logger.Error("integrity check failed", slog.Int64("company_id", companyID), slog.Any("error", err))
			return err
		}
		if report.OK() {
			continue
		}
		violations++
		if !report.Balanced {
			metricsOr(j.Metrics).AddIntegrityBreach("trial_balance", companyID, 1)
		}
		metricsOr(j.Metrics).AddIntegrityBreach("unbalanced_journal", companyID, len(report.UnbalancedJournals))
		logger.Error("ledger integrity violated",
			slog.Int64("company_id", companyID),
			slog.Bool("balanced", report.Balanced),
			slog.Float64("difference", report.Difference),
			slog.Any("journal_ids", report.UnbalancedJournals),
		)
	}
	logger.Info("GL integrity check executed", slog.Int("companies", len(companies)), slog.Int("violations", violations))
	return nil
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
