package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// DefaultThreshold is the minimum score accepted when none is configured.
const DefaultThreshold = 0.85

// Repository loads open items and persists matches.
type Repository interface {
	OpenTransactions(ctx context.Context, companyID int64) ([]BankTransaction, error)
	OpenInvoices(ctx context.Context, companyID int64) ([]Candidate, error)
	OpenExpenses(ctx context.Context, companyID int64) ([]Candidate, error)
	// ApplyMatches persists matches atomically and returns those that were still
	// open when written.
	ApplyMatches(ctx context.Context, companyID int64, matches []Match, at time.Time) ([]Match, error)
	InsertTransactions(ctx context.Context, companyID int64, txns []BankTransaction) (int, error)
}

// Result summarises an auto-reconciliation run.
type Result struct {
	Matched   int     `json:"matched"`
	Unmatched int     `json:"unmatched"`
	Matches   []Match `json:"matches"`
}

// Service matches bank activity against invoices and expenses.
type Service struct {
	repo      Repository
	threshold float64
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the reconciliation service. threshold is the default used
// when callers pass zero.
func NewService(repo Repository, threshold float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Service{repo: repo, threshold: threshold, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AutoReconcile matches open bank transactions of a company. Finding no match is
// not an error.
func (s *Service) AutoReconcile(ctx context.Context, companyID int64, threshold float64) (Result, error) {
	if threshold == 0 {
		threshold = s.threshold
	}
	if threshold < 0 || threshold > 1 {
		return Result{}, shared.Validation("reconcile: threshold must be within (0,1]")
	}
	txns, err := s.repo.OpenTransactions(ctx, companyID)
	if err != nil {
		return Result{}, err
	}
	if len(txns) == 0 {
		return Result{Matches: []Match{}}, nil
	}
	invoices, err := s.repo.OpenInvoices(ctx, companyID)
	if err != nil {
		return Result{}, err
	}
	expenses, err := s.repo.OpenExpenses(ctx, companyID)
	if err != nil {
		return Result{}, err
	}

	proposed := Assign(txns, invoices, expenses, threshold)
	applied := []Match{}
	if len(proposed) > 0 {
		applied, err = s.repo.ApplyMatches(ctx, companyID, proposed, s.now())
		if err != nil {
			return Result{}, err
		}
	}
	if skipped := len(proposed) - len(applied); skipped > 0 {
		s.logger.Info("reconcile matches taken by a concurrent run", slog.Int64("company_id", companyID), slog.Int("skipped", skipped))
	}
	result := Result{Matched: len(applied), Unmatched: len(txns) - len(applied), Matches: applied}
	s.logger.Info("auto reconcile finished",
		slog.Int64("company_id", companyID),
		slog.Int("matched", result.Matched),
		slog.Int("unmatched", result.Unmatched),
		slog.Float64("threshold", threshold),
	)
	return result, nil
}
