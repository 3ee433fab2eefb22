package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrInvalidRange is returned for missing or inverted date ranges.
var ErrInvalidRange = shared.NewError(shared.ErrValidation, "reports: invalid date range")

// ledgerEpoch is the start of every cumulative (balance sheet) range.
var ledgerEpoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// Repository reads the figures the reports are derived from.
type Repository interface {
	ListAccounts(ctx context.Context, companyID int64) ([]accounting.Account, error)
	SumLines(ctx context.Context, companyID int64, start, end time.Time) (map[int64]LineSum, error)
	// UnbalancedJournals lists journals whose own lines do not balance.
	UnbalancedJournals(ctx context.Context, companyID int64) ([]int64, error)
}

// Service derives trial balance, profit and loss and balance sheet reports from
// posted journals.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	logger *slog.Logger
}

// NewService wires the reporting service. cache may be nil.
func NewService(repo Repository, cache *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// TrialBalance returns every account's debit and credit totals for journals dated
// within [start, end]. An out-of-balance ledger is reported, never rejected.
func (s *Service) TrialBalance(ctx context.Context, companyID int64, start, end time.Time) (TrialBalance, error) {
	if start.IsZero() || end.IsZero() || start.After(end) {
		return TrialBalance{}, ErrInvalidRange
	}
	var tb TrialBalance
	loader := func(ctx context.Context) (any, error) {
		return s.buildTrialBalance(ctx, companyID, start, end)
	}
	key, err := s.cache.BuildKey(ctx, companyID, "tb", start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err == nil {
		err = s.cache.FetchJSON(ctx, key, &tb, loader)
	}
	if err != nil {
		if !cacheFailure(err) {
			return TrialBalance{}, err
		}
		s.logger.Warn("report cache unavailable", slog.Int64("company_id", companyID), slog.Any("error", err))
		if tb, err = s.buildTrialBalance(ctx, companyID, start, end); err != nil {
			return TrialBalance{}, err
		}
	}
	if !tb.Balanced {
		s.logger.Warn("trial balance out of balance",
			slog.Int64("company_id", companyID),
			slog.String("start", start.Format(time.DateOnly)),
			slog.String("end", end.Format(time.DateOnly)),
			slog.Float64("difference", tb.Difference),
		)
	}
	return tb, nil
}

func (s *Service) buildTrialBalance(ctx context.Context, companyID int64, start, end time.Time) (TrialBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx, companyID)
	if err != nil {
		return TrialBalance{}, err
	}
	sums, err := s.repo.SumLines(ctx, companyID, start, end)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(accounts, sums)
	tb.CompanyID = companyID
	tb.Start = start
	tb.End = end
	return tb, nil
}

// ProfitAndLoss returns revenue and expense totals for the range.
func (s *Service) ProfitAndLoss(ctx context.Context, companyID int64, start, end time.Time) (ProfitAndLoss, error) {
	tb, err := s.TrialBalance(ctx, companyID, start, end)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(tb), nil
}

// BalanceSheet returns cumulative balances up to and including asOf.
func (s *Service) BalanceSheet(ctx context.Context, companyID int64, asOf time.Time) (BalanceSheet, error) {
	tb, err := s.TrialBalance(ctx, companyID, ledgerEpoch, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(tb), nil
}

// cacheFailure reports whether err came from Redis rather than the loader, whose
// errors the repository has already tagged with a kind.
func cacheFailure(err error) bool {
	for _, kind := range []error{shared.ErrValidation, shared.ErrNotFound, shared.ErrExternalStore} {
		if errors.Is(err, kind) {
			return false
		}
	}
	return true
}
