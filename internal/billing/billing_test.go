package billing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var issue = time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)

type memRepo struct {
	mu       sync.Mutex
	clients  map[int64]int64
	invoices []Invoice
	expenses []Expense
	nextID   int64
}

func (r *memRepo) ClientBelongs(_ context.Context, companyID, clientID int64) (bool, error) {
	return r.clients[clientID] == companyID, nil
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, r)
}

func (r *memRepo) InsertInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	r.nextID++
	inv.ID = r.nextID
	if inv.Number == "" {
		inv.Number = FormatNumber(inv.ID)
	}
	r.invoices = append(r.invoices, inv)
	return inv, nil
}

func (r *memRepo) InsertExpense(_ context.Context, exp Expense) (Expense, error) {
	r.nextID++
	exp.ID = r.nextID
	r.expenses = append(r.expenses, exp)
	return exp, nil
}

type stubPoster struct {
	err      error
	invoices []accounting.InvoiceEvent
	expenses []accounting.ExpenseEvent
}

func (p *stubPoster) PostInvoice(_ context.Context, evt accounting.InvoiceEvent) (accounting.Journal, error) {
	p.invoices = append(p.invoices, evt)
	if p.err != nil {
		return accounting.Journal{}, p.err
	}
	return accounting.Journal{ID: 900 + evt.InvoiceID}, nil
}

func (p *stubPoster) PostExpense(_ context.Context, evt accounting.ExpenseEvent) (accounting.Journal, error) {
	p.expenses = append(p.expenses, evt)
	if p.err != nil {
		return accounting.Journal{}, p.err
	}
	return accounting.Journal{ID: 700 + evt.ExpenseID}, nil
}

func newService(poster *stubPoster) (*Service, *memRepo) {
	repo := &memRepo{clients: map[int64]int64{5: 1}}
	return NewService(repo, poster, nil), repo
}

func TestBuildInvoiceRoundsPerLineThenTaxes(t *testing.T) {
	inv := BuildInvoice(1, 5, issue, []LineItem{
		{Description: "Hosting", Quantity: 3, UnitPrice: 33.333},
		{Description: "Setup", Quantity: 1, UnitPrice: 0.005},
	}, 0.15)
	require.Equal(t, 100.0, inv.Items[0].Amount)
	require.Equal(t, 0.01, inv.Items[1].Amount)
	require.Equal(t, 100.01, inv.Subtotal)
	require.Equal(t, 15.0, inv.Tax)
	require.Equal(t, 115.01, inv.Total)
	require.Equal(t, issue.AddDate(0, 0, DefaultPaymentTermDays), inv.DueDate)
	require.Equal(t, InvoiceSent, inv.Status)
}

func TestCreateInvoicePostsJournal(t *testing.T) {
	poster := &stubPoster{}
	svc, repo := newService(poster)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		CompanyID: 1, ClientID: 5, IssueDate: issue, TaxRate: 0.15,
		Items: []LineItem{{Description: "Consulting", Quantity: 10, UnitPrice: 100}},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-000001", inv.Number)
	require.Equal(t, accounting.PostingPosted, inv.Posting.Status)
	require.EqualValues(t, 901, inv.Posting.JournalID)
	require.Len(t, repo.invoices, 1)
	require.Equal(t, accounting.InvoiceEvent{CompanyID: 1, InvoiceID: 1, Number: "INV-000001", Date: issue, Total: 1150, Tax: 150}, poster.invoices[0])
}

func TestCreateInvoiceKeepsRecordWhenPostingFails(t *testing.T) {
	poster := &stubPoster{err: accounting.ErrChartMissing}
	svc, repo := newService(poster)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		CompanyID: 1, ClientID: 5, Number: "A-1", IssueDate: issue,
		Items: []LineItem{{Description: "Consulting", Quantity: 1, UnitPrice: 80}},
	})
	require.NoError(t, err)
	require.Equal(t, accounting.PostingDegraded, inv.Posting.Status)
	require.Equal(t, accounting.ErrChartMissing.Error(), inv.Posting.Error)
	require.Len(t, repo.invoices, 1)
}

func TestCreateInvoiceRejectsForeignClient(t *testing.T) {
	poster := &stubPoster{}
	svc, repo := newService(poster)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		CompanyID: 2, ClientID: 5, IssueDate: issue,
		Items: []LineItem{{Description: "Consulting", Quantity: 1, UnitPrice: 80}},
	})
	require.ErrorIs(t, err, ErrClientNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.invoices)
	require.Empty(t, poster.invoices)
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, _ := newService(&stubPoster{})
	cases := map[string]CreateInvoiceInput{
		"no items":     {CompanyID: 1, ClientID: 5, IssueDate: issue},
		"no date":      {CompanyID: 1, ClientID: 5, Items: []LineItem{{Description: "x", Quantity: 1, UnitPrice: 1}}},
		"zero qty":     {CompanyID: 1, ClientID: 5, IssueDate: issue, Items: []LineItem{{Description: "x", UnitPrice: 1}}},
		"tax rate":     {CompanyID: 1, ClientID: 5, IssueDate: issue, TaxRate: 1.5, Items: []LineItem{{Description: "x", Quantity: 1, UnitPrice: 1}}},
		"due early":    {CompanyID: 1, ClientID: 5, IssueDate: issue, DueDate: issue.AddDate(0, 0, -1), Items: []LineItem{{Description: "x", Quantity: 1, UnitPrice: 1}}},
		"zero total":   {CompanyID: 1, ClientID: 5, IssueDate: issue, Items: []LineItem{{Description: "x", Quantity: 1}}},
		"missing desc": {CompanyID: 1, ClientID: 5, IssueDate: issue, Items: []LineItem{{Quantity: 1, UnitPrice: 1}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateInvoice(context.Background(), input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestCreateExpenseDefaultsCategory(t *testing.T) {
	poster := &stubPoster{}
	svc, _ := newService(poster)

	exp, err := svc.CreateExpense(context.Background(), CreateExpenseInput{
		CompanyID: 1, Payee: " Office Mart ", Date: issue, Subtotal: 100, Tax: 15, Paid: true,
	})
	require.NoError(t, err)
	require.Equal(t, "Office Mart", exp.Payee)
	require.Equal(t, accounting.CodeOperatingExpenses, exp.CategoryCode)
	require.Equal(t, 115.0, exp.Total)
	require.Equal(t, accounting.PostingPosted, exp.Posting.Status)
	require.True(t, poster.expenses[0].Paid)
}

type memKeys struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (k *memKeys) CheckAndInsert(_ context.Context, companyID int64, key, _ string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.seen == nil {
		k.seen = map[string]bool{}
	}
	if k.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	k.seen[key] = true
	return nil
}

func (k *memKeys) Delete(_ context.Context, _ int64, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.seen, key)
	return nil
}

func postJSON(t *testing.T, r http.Handler, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	req = req.WithContext(shared.ContextWithCompany(req.Context(), 1))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandlerReplaysAreRejected(t *testing.T) {
	svc, repo := newService(&stubPoster{})
	r := chi.NewRouter()
	NewHandler(nil, svc, &memKeys{}).MountRoutes(r)

	body := `{"clientId":5,"issueDate":"2025-10-14","taxRate":0.15,"items":[{"description":"Consulting","quantity":1,"unitPrice":100}]}`
	first := postJSON(t, r, "/invoices", "abc", body)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Contains(t, first.Body.String(), `"status":"posted"`)

	second := postJSON(t, r, "/invoices", "abc", body)
	require.Equal(t, http.StatusConflict, second.Code)
	require.Len(t, repo.invoices, 1)
}

func TestHandlerReleasesKeyOnFailure(t *testing.T) {
	svc, _ := newService(&stubPoster{})
	keys := &memKeys{}
	r := chi.NewRouter()
	NewHandler(nil, svc, keys).MountRoutes(r)

	foreign := `{"clientId":9,"issueDate":"2025-10-14","items":[{"description":"x","quantity":1,"unitPrice":1}]}`
	rr := postJSON(t, r, "/invoices", "k1", foreign)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.False(t, keys.seen["k1"])
}

func TestHandlerCreatesExpense(t *testing.T) {
	poster := &stubPoster{err: errors.New("db down")}
	svc, _ := newService(poster)
	r := chi.NewRouter()
	NewHandler(nil, svc, nil).MountRoutes(r)

	rr := postJSON(t, r, "/expenses", "", `{"payee":"Utility Co","date":"2025-10-01","subtotal":200,"tax":30}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"degraded"`)

	bad := postJSON(t, r, "/expenses", "", `{"payee":"Utility Co","date":"01/10/2025","subtotal":200}`)
	require.Equal(t, http.StatusBadRequest, bad.Code)
}
