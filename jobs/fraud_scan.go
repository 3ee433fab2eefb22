package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/fraud"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// FraudAnalyzer runs the fraud heuristics.
type FraudAnalyzer interface {
	Analyze(ctx context.Context, companyID int64) ([]fraud.Alert, error)
}

// FraudScanJob reports fraud alerts to logs and metrics. Alerts are not stored.
type FraudScanJob struct {
	Detector FraudAnalyzer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handle processes TaskFraudScan tasks.
func (j *FraudScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Detector == nil {
		return errors.New("fraud scan: handler not configured")
	}
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	start := time.Now()
	tracker := metricsOr(j.Metrics).Track(TaskFraudScan)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskFraudScan)
	logger.Info("starting fraud scan", slog.Int64("company_id", payload.CompanyID))

	alerts, err := j.Detector.Analyze(ctx, payload.CompanyID)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}
	for _, a := range alerts {
		logger.Warn("fraud alert detected",
			slog.Int64("company_id", a.CompanyID),
			slog.String("type", string(a.Type)),
			slog.String("severity", string(a.Severity)),
			slog.Any("source_ids", a.SourceIDs),
			slog.Float64("amount", a.Amount),
		)
		metricsOr(j.Metrics).AddFraudAlerts(string(a.Type), string(a.Severity), a.CompanyID, 1)
	}
	logger.Info("completed fraud scan",
		slog.Int("alerts", len(alerts)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
