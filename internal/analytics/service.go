package analytics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/fraud"
)

// windowDays is the length of the revenue windows compared for growth and DSO.
const windowDays = 90

const calculateTimeout = 30 * time.Second

// Ledger supplies statements derived from the ledger.
type Ledger interface {
	ProfitAndLoss(ctx context.Context, companyID int64, start, end time.Time) (reports.ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, companyID int64, asOf time.Time) (reports.BalanceSheet, error)
}

// Alerts supplies fraud alerts.
type Alerts interface {
	Analyze(ctx context.Context, companyID int64) ([]fraud.Alert, error)
}

// BankActivity counts bank lines in a window.
type BankActivity struct {
	Total        int
	Unreconciled int
}

// Repository reads operational figures.
type Repository interface {
	ReceivablesOutstanding(ctx context.Context, companyID int64, asOf time.Time) (float64, error)
	BankActivity(ctx context.Context, companyID int64, start, end time.Time) (BankActivity, error)
}

// Service aggregates the company health score.
type Service struct {
	ledger Ledger
	repo   Repository
	alerts Alerts
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

// NewService wires the aggregator. alerts may be nil.
func NewService(ledger Ledger, repo Repository, alerts Alerts, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, repo: repo, alerts: alerts, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CalculateHealthScore computes the weighted score for a company. Failed or
// empty inputs make their pillar neutral; only cancellation fails the call.
// Concurrent calls for the same company and day share one computation.
func (s *Service) CalculateHealthScore(ctx context.Context, companyID int64) (HealthScore, error) {
	asOf := truncateDay(s.now())
	key := strconv.FormatInt(companyID, 10) + ":" + asOf.Format(time.DateOnly)
	// The shared run outlives any single caller; each caller still honours its own ctx.
	ch := s.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), calculateTimeout)
		defer cancel()
		return s.calculate(runCtx, companyID, asOf)
	})
	select {
	case <-ctx.Done():
		return HealthScore{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return HealthScore{}, res.Err
		}
		return res.Val.(HealthScore), nil
	}
}

func (s *Service) calculate(ctx context.Context, companyID int64, asOf time.Time) (HealthScore, error) {
	curStart := asOf.AddDate(0, 0, -(windowDays - 1))
	prevEnd := curStart.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(windowDays - 1))
	yearStart := asOf.AddDate(-1, 0, 1)

	in := Inputs{CollectionsWindow: windowDays}
	var g errgroup.Group

	g.Go(func() error {
		bs, err := s.ledger.BalanceSheet(ctx, companyID, asOf)
		if s.skip(ctx, PillarLiquidity, companyID, err) {
			return ctx.Err()
		}
		if ratio, ok := bs.CurrentRatio(); ok {
			in.CurrentRatio = &ratio
		}
		return nil
	})
	g.Go(func() error {
		pl, err := s.ledger.ProfitAndLoss(ctx, companyID, yearStart, asOf)
		if s.skip(ctx, PillarProfitability, companyID, err) {
			return ctx.Err()
		}
		if margin, ok := pl.NetMargin(); ok {
			in.NetMargin = &margin
		}
		return nil
	})
	g.Go(func() error {
		pl, err := s.ledger.ProfitAndLoss(ctx, companyID, curStart, asOf)
		if s.skip(ctx, PillarGrowth, companyID, err) {
			return ctx.Err()
		}
		revenue := pl.Revenue.Total
		in.RevenueCurrent = &revenue
		return nil
	})
	g.Go(func() error {
		pl, err := s.ledger.ProfitAndLoss(ctx, companyID, prevStart, prevEnd)
		if s.skip(ctx, PillarGrowth, companyID, err) {
			return ctx.Err()
		}
		revenue := pl.Revenue.Total
		in.RevenuePrevious = &revenue
		return nil
	})
	g.Go(func() error {
		ar, err := s.repo.ReceivablesOutstanding(ctx, companyID, asOf)
		if s.skip(ctx, PillarCollections, companyID, err) {
			return ctx.Err()
		}
		in.Receivables = &ar
		return nil
	})
	g.Go(func() error {
		activity, err := s.repo.BankActivity(ctx, companyID, curStart, asOf)
		if s.skip(ctx, PillarCompliance, companyID, err) {
			return ctx.Err()
		}
		in.BankTotal, in.BankUnreconciled = &activity.Total, &activity.Unreconciled
		return nil
	})
	if s.alerts != nil {
		g.Go(func() error {
			alerts, err := s.alerts.Analyze(ctx, companyID)
			if s.skip(ctx, PillarCompliance, companyID, err) {
				return ctx.Err()
			}
			penalty := alertPenalty(alerts)
			in.AlertPenalty = &penalty
			in.AlertCount = len(alerts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return HealthScore{}, err
	}

	score := Compute(companyID, asOf, in)
	s.logger.Debug("health score computed", slog.Int64("company_id", companyID), slog.Float64("score", score.TotalScore))
	return score, nil
}

// skip logs a failed input. It reports true when the input must be left unset.
func (s *Service) skip(ctx context.Context, pillar string, companyID int64, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() == nil {
		s.logger.Warn("health input unavailable", slog.String("pillar", pillar), slog.Int64("company_id", companyID), slog.Any("error", err))
	}
	return true
}

func alertPenalty(alerts []fraud.Alert) float64 {
	var penalty float64
	for _, a := range alerts {
		switch a.Severity {
		case fraud.SeverityHigh:
			penalty += 15
		case fraud.SeverityMedium:
			penalty += 10
		default:
			penalty += 5
		}
	}
	return penalty
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
