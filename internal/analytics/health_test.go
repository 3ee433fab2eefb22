package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/fraud"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var asOf = time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range Weights {
		sum += w
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestComputeWithoutDataIsNeutral(t *testing.T) {
	score := Compute(1, asOf, Inputs{})
	require.Equal(t, 50.0, score.TotalScore)
	require.Equal(t, RatingFair, score.Rating)
	require.Len(t, score.Pillars, 5)
	for _, p := range score.Pillars {
		require.True(t, p.Neutral, p.Name)
		require.Equal(t, NeutralScore, p.Score)
	}
}

func TestComputeWeightsPillars(t *testing.T) {
	score := Compute(1, asOf, Inputs{
		CurrentRatio:      ptr(1.5),
		NetMargin:         ptr(0.1),
		RevenueCurrent:    ptr(9000.0),
		RevenuePrevious:   ptr(6000.0),
		Receivables:       ptr(3000.0),
		BankTotal:         ptr(10),
		BankUnreconciled:  ptr(1),
		AlertPenalty:      ptr(5.0),
		AlertCount:        1,
		CollectionsWindow: windowDays,
	})
	want := map[string]float64{
		PillarLiquidity:     75,
		PillarProfitability: 75,
		PillarGrowth:        100,
		PillarCollections:   100,
		PillarCompliance:    85,
	}
	for name, expected := range want {
		p, ok := score.Pillar(name)
		require.True(t, ok)
		require.False(t, p.Neutral, name)
		require.InDelta(t, expected, p.Score, 0.05, name)
	}
	require.Equal(t, 85.8, score.TotalScore)
	require.Equal(t, RatingExcellent, score.Rating)
}

func TestComputeClampsExtremes(t *testing.T) {
	score := Compute(1, asOf, Inputs{
		CurrentRatio:      ptr(0.0),
		NetMargin:         ptr(-3.0),
		RevenueCurrent:    ptr(1.0),
		RevenuePrevious:   ptr(1000.0),
		Receivables:       ptr(1e9),
		BankTotal:         ptr(4),
		BankUnreconciled:  ptr(4),
		AlertPenalty:      ptr(60.0),
		CollectionsWindow: windowDays,
	})
	require.Zero(t, score.TotalScore)
	require.Equal(t, RatingPoor, score.Rating)
}

func TestRatingBands(t *testing.T) {
	require.Equal(t, RatingExcellent, RatingFor(80))
	require.Equal(t, RatingGood, RatingFor(79.9))
	require.Equal(t, RatingGood, RatingFor(60))
	require.Equal(t, RatingFair, RatingFor(40))
	require.Equal(t, RatingPoor, RatingFor(39.9))
}

type stubLedger struct {
	calls   atomic.Int32
	release chan struct{}
	bsErr   error
	pl      map[time.Time]reports.ProfitAndLoss
	bs      reports.BalanceSheet
}

func (l *stubLedger) ProfitAndLoss(_ context.Context, _ int64, start, _ time.Time) (reports.ProfitAndLoss, error) {
	return l.pl[start], nil
}

func (l *stubLedger) BalanceSheet(context.Context, int64, time.Time) (reports.BalanceSheet, error) {
	l.calls.Add(1)
	if l.release != nil {
		<-l.release
	}
	return l.bs, l.bsErr
}

type stubRepo struct {
	arErr    error
	ar       float64
	activity BankActivity
}

func (r stubRepo) ReceivablesOutstanding(context.Context, int64, time.Time) (float64, error) {
	return r.ar, r.arErr
}

func (r stubRepo) BankActivity(context.Context, int64, time.Time, time.Time) (BankActivity, error) {
	return r.activity, nil
}

type stubAlerts []fraud.Alert

func (a stubAlerts) Analyze(context.Context, int64) ([]fraud.Alert, error) { return a, nil }

func profitAndLoss(revenue, net float64) reports.ProfitAndLoss {
	return reports.ProfitAndLoss{Revenue: reports.ProfitAndLossSection{Total: revenue}, NetIncome: net}
}

func newLedger() *stubLedger {
	return &stubLedger{
		bs: reports.BalanceSheet{CurrentAssets: 3000, CurrentLiabilities: 2000},
		pl: map[time.Time]reports.ProfitAndLoss{
			asOf.AddDate(-1, 0, 1):   profitAndLoss(40000, 4000),
			asOf.AddDate(0, 0, -89):  profitAndLoss(9000, 900),
			asOf.AddDate(0, 0, -179): profitAndLoss(6000, 600),
		},
	}
}

func newService(ledger Ledger, repo Repository, alerts Alerts) *Service {
	svc := NewService(ledger, repo, alerts, nil)
	svc.WithNow(func() time.Time { return asOf.Add(15 * time.Hour) })
	return svc
}

func TestCalculateHealthScoreFromInputs(t *testing.T) {
	svc := newService(newLedger(), stubRepo{ar: 3000, activity: BankActivity{Total: 10, Unreconciled: 1}},
		stubAlerts{{Type: fraud.AlertWeekend, Severity: fraud.SeverityLow}})

	score, err := svc.CalculateHealthScore(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, asOf, score.AsOf)
	require.Equal(t, 85.8, score.TotalScore)

	compliance, _ := score.Pillar(PillarCompliance)
	require.Equal(t, 1.0, compliance.Metrics["fraudAlerts"])
}

func TestCalculateHealthScoreDegradesFailedInputs(t *testing.T) {
	ledger := newLedger()
	ledger.bsErr = shared.StoreError("balance sheet", errors.New("timeout"))
	svc := newService(ledger, stubRepo{arErr: errors.New("boom")}, nil)

	score, err := svc.CalculateHealthScore(context.Background(), 1)
	require.NoError(t, err)
	for _, name := range []string{PillarLiquidity, PillarCollections, PillarCompliance} {
		p, _ := score.Pillar(name)
		require.True(t, p.Neutral, name)
	}
	growth, _ := score.Pillar(PillarGrowth)
	require.False(t, growth.Neutral)
	require.GreaterOrEqual(t, score.TotalScore, 0.0)
	require.LessOrEqual(t, score.TotalScore, 100.0)
}

func TestCalculateHealthScoreCollapsesConcurrentCalls(t *testing.T) {
	ledger := newLedger()
	ledger.release = make(chan struct{})
	svc := newService(ledger, stubRepo{}, nil)

	var started, done sync.WaitGroup
	scores := make([]HealthScore, 5)
	for i := range scores {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			score, err := svc.CalculateHealthScore(context.Background(), 1)
			require.NoError(t, err)
			scores[i] = score
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(ledger.release)
	done.Wait()

	require.EqualValues(t, 1, ledger.calls.Load())
	for _, s := range scores {
		require.Equal(t, scores[0].TotalScore, s.TotalScore)
	}
}

func TestHealthHandler(t *testing.T) {
	svc := newService(newLedger(), stubRepo{}, nil)
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/analytics/health", nil)
	req = req.WithContext(shared.ContextWithCompany(req.Context(), 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"rating":`)
	require.Contains(t, rr.Body.String(), `"name":"liquidity"`)

	missing := httptest.NewRecorder()
	r.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/analytics/health", nil))
	require.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestCalculateHealthScoreSurvivesCancelledFirstCaller(t *testing.T) {
	ledger := newLedger()
	ledger.release = make(chan struct{})
	svc := newService(ledger, stubRepo{}, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.CalculateHealthScore(firstCtx, 1)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return ledger.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		score HealthScore
		err   error
	}
	second := make(chan outcome, 1)
	go func() {
		score, err := svc.CalculateHealthScore(context.Background(), 1)
		second <- outcome{score, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(ledger.release)
	got := <-second
	require.NoError(t, got.err)
	require.NotZero(t, got.score.TotalScore)
	require.EqualValues(t, 1, ledger.calls.Load())
}
