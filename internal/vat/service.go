package vat

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LedgerPort exposes the trial balance the VAT figures are read from.
type LedgerPort interface {
	TrialBalance(ctx context.Context, companyID int64, start, end time.Time) (reports.TrialBalance, error)
}

// Repository reads raw sales and purchase figures from business records.
type Repository interface {
	RawFigures(ctx context.Context, companyID int64, start, end time.Time) (RawFigures, error)
}

// RawFigures are the invoice and expense totals of a window, excluding void invoices.
type RawFigures struct {
	StandardRatedSales float64 `json:"standardRatedSales"`
	ZeroRatedSales     float64 `json:"zeroRatedSales"`
	Purchases          float64 `json:"purchases"`
	OutputTax          float64 `json:"outputTax"`
	InputTax           float64 `json:"inputTax"`
}

// Drift is the difference between raw tax and ledger tax; non-zero values point
// at postings that failed.
type Drift struct {
	OutputTax float64 `json:"outputTax"`
	InputTax  float64 `json:"inputTax"`
}

// Summary is the VAT position of a company for a window.
type Summary struct {
	CompanyID   int64      `json:"companyId"`
	Period      Period     `json:"period"`
	OutputTax   float64    `json:"outputTax"`
	InputTax    float64    `json:"inputTax"`
	NetPayable  float64    `json:"netPayable"`
	Raw         RawFigures `json:"raw"`
	LedgerDrift Drift      `json:"ledgerDrift"`
}

// Service computes VAT returns from the ledger.
type Service struct {
	ledger LedgerPort
	repo   Repository
	logger *slog.Logger
	months int
	now    func() time.Time
}

// NewService wires the VAT engine. months is the filing period length.
func NewService(ledger LedgerPort, repo Repository, months int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, repo: repo, logger: logger, months: normaliseMonths(months), now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CurrentPeriod returns the filing period containing today.
func (s *Service) CurrentPeriod() Period {
	return CurrentPeriod(s.now(), s.months)
}

// ResolvePeriod parses a period selector relative to today.
func (s *Service) ResolvePeriod(value string) (Period, error) {
	return ParsePeriod(value, s.now(), s.months)
}

// CalculateForPeriod sums VAT Output credits and VAT Input debits posted within
// [start, end].
func (s *Service) CalculateForPeriod(ctx context.Context, companyID int64, start, end time.Time) (Summary, error) {
	if start.IsZero() || end.IsZero() || start.After(end) {
		return Summary{}, shared.Validation("vat: invalid date range")
	}
	tb, err := s.ledger.TrialBalance(ctx, companyID, start, end)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{CompanyID: companyID, Period: Period{Start: start, End: end}}
	if row, ok := tb.Row(accounting.CodeVATOutput); ok {
		summary.OutputTax = shared.SubMoney(row.Credit, row.Debit)
	}
	if row, ok := tb.Row(accounting.CodeVATInput); ok {
		summary.InputTax = shared.SubMoney(row.Debit, row.Credit)
	}
	summary.NetPayable = shared.SubMoney(summary.OutputTax, summary.InputTax)

	if s.repo != nil {
		raw, err := s.repo.RawFigures(ctx, companyID, start, end)
		if err != nil {
			return Summary{}, err
		}
		summary.Raw = raw
		summary.LedgerDrift = Drift{
			OutputTax: shared.SubMoney(raw.OutputTax, summary.OutputTax),
			InputTax:  shared.SubMoney(raw.InputTax, summary.InputTax),
		}
		if summary.LedgerDrift.OutputTax != 0 || summary.LedgerDrift.InputTax != 0 {
			s.logger.Warn("vat ledger drift",
				slog.Int64("company_id", companyID),
				slog.String("period", summary.Period.String()),
				slog.Float64("output_drift", summary.LedgerDrift.OutputTax),
				slog.Float64("input_drift", summary.LedgerDrift.InputTax),
			)
		}
	}
	return summary, nil
}

// GenerateVAT201 maps the period's summary onto the VAT201 return.
func (s *Service) GenerateVAT201(ctx context.Context, companyID int64, start, end time.Time) (VAT201, error) {
	summary, err := s.CalculateForPeriod(ctx, companyID, start, end)
	if err != nil {
		return VAT201{}, err
	}
	return BuildVAT201(summary), nil
}
