package fraud

import (
	"context"
	"log/slog"
	"time"
)

// Repository lists invoices for analysis. companyID 0 means every company.
type Repository interface {
	Invoices(ctx context.Context, companyID int64) ([]Invoice, error)
}

// Service runs the fraud heuristics on demand.
type Service struct {
	repo   Repository
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the detector.
func NewService(repo Repository, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cfg: cfg.withDefaults(), logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Analyze returns the alerts for one company, or for all when companyID is 0.
func (s *Service) Analyze(ctx context.Context, companyID int64) ([]Alert, error) {
	invoices, err := s.repo.Invoices(ctx, companyID)
	if err != nil {
		return nil, err
	}
	alerts := Detect(invoices, s.now(), s.cfg)
	s.logger.Info("fraud analysis finished",
		slog.Int64("company_id", companyID),
		slog.Int("invoices", len(invoices)),
		slog.Int("alerts", len(alerts)),
	)
	return alerts, nil
}
