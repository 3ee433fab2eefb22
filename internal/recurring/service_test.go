package recurring

import (
	"bytes"
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

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/billing"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var now = time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC)

type memRepo struct {
	mu        sync.Mutex
	profiles  map[int64]*Profile
	invoices  []billing.Invoice
	nextID    int64
	failOn    int64
	raceOn    int64
	listCalls int
}

func newMemRepo(profiles ...Profile) *memRepo {
	r := &memRepo{profiles: map[int64]*Profile{}}
	for i := range profiles {
		p := profiles[i]
		r.profiles[p.ID] = &p
	}
	return r
}

func (r *memRepo) DueProfiles(_ context.Context, companyID int64, today time.Time) ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var out []Profile
	for id := int64(1); id <= int64(len(r.profiles)); id++ {
		p, ok := r.profiles[id]
		if !ok || !p.Active || p.NextRunDate.After(today) {
			continue
		}
		if companyID != 0 && p.CompanyID != companyID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *memRepo) ListProfiles(context.Context, int64) ([]Profile, error) { return nil, nil }

func (r *memRepo) ClientBelongs(_ context.Context, companyID, clientID int64) (bool, error) {
	return clientID == 5 && companyID == 1, nil
}

func (r *memRepo) InsertProfile(_ context.Context, p Profile) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = int64(len(r.profiles) + 1)
	r.profiles[p.ID] = &p
	return p, nil
}

// WithTx applies the profile advance and the invoice only when fn succeeds.
func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.advance != nil {
		p := r.profiles[tx.advance.ProfileID]
		p.NextRunDate, p.Active = tx.advance.To, tx.advance.Active
		ran := tx.advance.RanAt
		p.LastRunAt = &ran
	}
	r.invoices = append(r.invoices, tx.invoices...)
	return nil
}

type memTx struct {
	repo     *memRepo
	advance  *Advance
	invoices []billing.Invoice
}

func (tx *memTx) AdvanceProfile(_ context.Context, adv Advance) (bool, error) {
	if tx.repo.raceOn == adv.ProfileID {
		return false, nil
	}
	p := tx.repo.profiles[adv.ProfileID]
	if !p.Active || !p.NextRunDate.Equal(adv.From) {
		return false, nil
	}
	tx.advance = &adv
	return true, nil
}

func (tx *memTx) InsertInvoice(_ context.Context, inv billing.Invoice) (billing.Invoice, error) {
	if tx.repo.failOn != 0 && tx.advance != nil && tx.advance.ProfileID == tx.repo.failOn {
		return billing.Invoice{}, shared.StoreError("insert invoice", errors.New("disk full"))
	}
	tx.repo.nextID++
	inv.ID = tx.repo.nextID
	inv.Number = billing.FormatNumber(inv.ID)
	tx.invoices = append(tx.invoices, inv)
	return inv, nil
}

func (tx *memTx) InsertExpense(_ context.Context, exp billing.Expense) (billing.Expense, error) {
	return exp, nil
}

type stubPoster struct {
	mu     sync.Mutex
	err    error
	events []accounting.InvoiceEvent
}

func (p *stubPoster) PostInvoice(_ context.Context, evt accounting.InvoiceEvent) (accounting.Journal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	if p.err != nil {
		return accounting.Journal{}, p.err
	}
	return accounting.Journal{ID: evt.InvoiceID + 100}, nil
}

func profile(id int64, start time.Time, interval Interval) Profile {
	return Profile{
		ID: id, CompanyID: 1, ClientID: 5, Interval: interval,
		StartDate: start, NextRunDate: start, Active: true, TaxRate: 0.15,
		LineItems: []billing.LineItem{{Description: "Retainer", Quantity: 1, UnitPrice: 1000}},
	}
}

func newService(repo *memRepo, poster *stubPoster) *Service {
	svc := NewService(repo, poster, nil)
	svc.WithNow(func() time.Time { return now })
	return svc
}

func TestProcessDueProfilesFiresOnceAndAdvancesOneMonth(t *testing.T) {
	start := day(2025, 10, 13)
	repo := newMemRepo(profile(1, start, Monthly))
	poster := &stubPoster{}
	svc := newService(repo, poster)

	result, err := svc.ProcessDueProfiles(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Len(t, result.InvoicesCreated, 1)
	require.Empty(t, result.Failed)
	require.Len(t, repo.invoices, 1)

	created := result.InvoicesCreated[0]
	require.Equal(t, day(2025, 11, 13), created.NextRunDate)
	require.Equal(t, day(2025, 11, 13), repo.profiles[1].NextRunDate)
	require.Equal(t, 1150.0, created.Total)
	require.Equal(t, accounting.PostingPosted, created.Posting.Status)
	require.Equal(t, start, poster.events[0].Date)

	again, err := svc.ProcessDueProfiles(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, again.Processed)
	require.Len(t, repo.invoices, 1)
}

func TestProcessDueProfilesCatchesUpOneRunPerCall(t *testing.T) {
	repo := newMemRepo(profile(1, day(2025, 8, 1), Monthly))
	svc := newService(repo, &stubPoster{})

	var dates []time.Time
	for i := 0; i < 4; i++ {
		_, err := svc.ProcessDueProfiles(context.Background(), 0)
		require.NoError(t, err)
		dates = append(dates, repo.profiles[1].NextRunDate)
	}
	require.Equal(t, []time.Time{day(2025, 9, 1), day(2025, 10, 1), day(2025, 11, 1), day(2025, 11, 1)}, dates)
	require.Len(t, repo.invoices, 3)
}

func TestProcessDueProfilesIsolatesFailures(t *testing.T) {
	repo := newMemRepo(
		profile(1, day(2025, 10, 1), Weekly),
		profile(2, day(2025, 10, 1), Weekly),
		profile(3, day(2025, 10, 1), Weekly),
	)
	repo.failOn = 2
	broken := repo.profiles[3]
	broken.LineItems = nil
	svc := newService(repo, &stubPoster{})

	result, err := svc.ProcessDueProfiles(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 3, result.Processed)
	require.Len(t, result.InvoicesCreated, 1)
	require.Len(t, result.Failed, 2)
	require.EqualValues(t, 2, result.Failed[0].ProfileID)
	require.Equal(t, "internal server error", result.Failed[0].Error)
	require.EqualValues(t, 3, result.Failed[1].ProfileID)

	require.Equal(t, day(2025, 10, 8), repo.profiles[1].NextRunDate)
	require.Equal(t, day(2025, 10, 1), repo.profiles[2].NextRunDate, "failed profile must not advance")
}

func TestProcessDueProfilesDeactivatesAfterEndDate(t *testing.T) {
	p := profile(1, day(2025, 10, 14), Monthly)
	end := day(2025, 11, 1)
	p.EndDate = &end
	repo := newMemRepo(p)
	svc := newService(repo, &stubPoster{})

	result, err := svc.ProcessDueProfiles(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, result.InvoicesCreated, 1)
	require.False(t, result.InvoicesCreated[0].Active)
	require.False(t, repo.profiles[1].Active)
}

func TestProcessDueProfilesSkipsProfilesAdvancedElsewhere(t *testing.T) {
	repo := newMemRepo(profile(1, day(2025, 10, 1), Monthly))
	repo.raceOn = 1
	svc := newService(repo, &stubPoster{})

	result, err := svc.ProcessDueProfiles(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, result.InvoicesCreated)
	require.Empty(t, result.Failed)
	require.Empty(t, repo.invoices)
	require.Zero(t, result.Processed)
	require.Equal(t, 1, result.Skipped)
}

func TestProcessDueProfilesConcurrentRunsCreateOneInvoice(t *testing.T) {
	repo := newMemRepo(profile(1, day(2025, 10, 1), Monthly))
	svc := newService(repo, &stubPoster{})

	var wg sync.WaitGroup
	var processed atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ProcessDueProfiles(context.Background(), 0)
			require.NoError(t, err)
			processed.Add(int32(result.Processed))
		}()
	}
	wg.Wait()
	require.Len(t, repo.invoices, 1)
	require.EqualValues(t, 1, processed.Load())
}

func TestProcessDueProfilesDegradesPosting(t *testing.T) {
	repo := newMemRepo(profile(1, day(2025, 10, 1), Monthly))
	svc := newService(repo, &stubPoster{err: accounting.ErrChartMissing})

	result, err := svc.ProcessDueProfiles(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, repo.invoices, 1)
	require.Equal(t, accounting.PostingDegraded, result.InvoicesCreated[0].Posting.Status)
}

func TestProcessDueProfilesScopesByCompany(t *testing.T) {
	other := profile(2, day(2025, 10, 1), Monthly)
	other.CompanyID = 2
	repo := newMemRepo(profile(1, day(2025, 10, 1), Monthly), other)
	svc := newService(repo, &stubPoster{})

	result, err := svc.ProcessDueProfiles(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, result.InvoicesCreated, 1)
	require.EqualValues(t, 2, result.InvoicesCreated[0].ProfileID)
}

func TestCreateProfileValidates(t *testing.T) {
	svc := newService(newMemRepo(), &stubPoster{})
	items := []billing.LineItem{{Description: "Retainer", Quantity: 1, UnitPrice: 10}}

	p, err := svc.CreateProfile(context.Background(), ProfileInput{CompanyID: 1, ClientID: 5, Interval: Quarterly, StartDate: now, LineItems: items})
	require.NoError(t, err)
	require.Equal(t, day(2025, 10, 14), p.NextRunDate)
	require.True(t, p.Active)

	_, err = svc.CreateProfile(context.Background(), ProfileInput{CompanyID: 1, ClientID: 5, Interval: "hourly", StartDate: now, LineItems: items})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateProfile(context.Background(), ProfileInput{CompanyID: 1, ClientID: 6, Interval: Monthly, StartDate: now, LineItems: items})
	require.ErrorIs(t, err, billing.ErrClientNotFound)

	end := day(2025, 1, 1)
	_, err = svc.CreateProfile(context.Background(), ProfileInput{CompanyID: 1, ClientID: 5, Interval: Monthly, StartDate: now, EndDate: &end, LineItems: items})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestProcessHandler(t *testing.T) {
	repo := newMemRepo(profile(1, day(2025, 10, 13), Monthly))
	r := chi.NewRouter()
	NewHandler(nil, newService(repo, &stubPoster{})).MountRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/recurring/process", bytes.NewReader(nil))
	req = req.WithContext(shared.ContextWithCompany(req.Context(), 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"processed":1`)
	require.Contains(t, rr.Body.String(), `"nextRunDate":"2025-11-13T00:00:00Z"`)
}
