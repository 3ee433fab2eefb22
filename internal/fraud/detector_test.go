package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

func weekday(d int) time.Time {
	// 2025-10-13 is a Monday.
	return time.Date(2025, 10, 13+d, 0, 0, 0, 0, time.UTC)
}

func ofType(alerts []Alert, typ AlertType) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestDetectDuplicateGroup(t *testing.T) {
	invoices := []Invoice{
		{ID: 1, CompanyID: 1, ClientID: 5, IssueDate: weekday(1), Total: 1234.56},
		{ID: 2, CompanyID: 1, ClientID: 5, IssueDate: weekday(1), Total: 1234.56},
		{ID: 3, CompanyID: 1, ClientID: 6, IssueDate: weekday(1), Total: 1234.56},
		{ID: 4, CompanyID: 1, ClientID: 5, IssueDate: weekday(2), Total: 1234.56},
	}
	dups := ofType(Detect(invoices, now, DefaultConfig()), AlertDuplicate)
	require.Len(t, dups, 1)
	require.Equal(t, []int64{1, 2}, dups[0].SourceIDs)
	require.Equal(t, SeverityHigh, dups[0].Severity)
}

func TestDetectDuplicatesStayWithinCompany(t *testing.T) {
	invoices := []Invoice{
		{ID: 1, CompanyID: 1, ClientID: 5, IssueDate: weekday(1), Total: 10},
		{ID: 2, CompanyID: 2, ClientID: 5, IssueDate: weekday(1), Total: 10},
	}
	require.Empty(t, ofType(Detect(invoices, now, DefaultConfig()), AlertDuplicate))
}

func TestDetectOutlierAgainstBaseline(t *testing.T) {
	var invoices []Invoice
	amounts := []float64{980, 1010, 1000, 995, 1020, 1005, 990}
	for i, amount := range amounts {
		invoices = append(invoices, Invoice{ID: int64(i + 1), CompanyID: 1, ClientID: int64(10 + i), IssueDate: weekday(0).AddDate(0, 0, -7*(i+1)), Total: amount})
	}
	invoices = append(invoices, Invoice{ID: 99, CompanyID: 1, ClientID: 1, Number: "INV-0099", IssueDate: weekday(1), Total: 1_000_000})

	out := ofType(Detect(invoices, now, DefaultConfig()), AlertOutlier)
	require.Len(t, out, 1)
	require.Equal(t, []int64{99}, out[0].SourceIDs)
	require.Equal(t, SeverityHigh, out[0].Severity)
}

func TestDetectOutlierNeedsEnoughHistory(t *testing.T) {
	invoices := []Invoice{
		{ID: 1, CompanyID: 1, IssueDate: weekday(0), Total: 1000},
		{ID: 2, CompanyID: 1, IssueDate: weekday(1), Total: 1000},
		{ID: 3, CompanyID: 1, IssueDate: weekday(2), Total: 1_000_000},
	}
	require.Empty(t, ofType(Detect(invoices, now, DefaultConfig()), AlertOutlier))
}

func TestDetectOutlierIgnoresOldInvoices(t *testing.T) {
	var invoices []Invoice
	for i := 0; i < 6; i++ {
		invoices = append(invoices, Invoice{ID: int64(i + 1), CompanyID: 1, IssueDate: weekday(0), Total: 1000})
	}
	invoices = append(invoices, Invoice{ID: 50, CompanyID: 1, IssueDate: now.AddDate(-2, 0, 0), Total: 1_000_000})
	require.Empty(t, ofType(Detect(invoices, now, DefaultConfig()), AlertOutlier))
}

func TestDetectWeekendInvoice(t *testing.T) {
	sunday := time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC)
	old := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC) // a Saturday, far outside any lookback
	invoices := []Invoice{
		{ID: 1, CompanyID: 1, Number: "INV-1", IssueDate: sunday, Total: 10},
		{ID: 2, CompanyID: 1, Number: "INV-2", IssueDate: weekday(0), Total: 10},
		{ID: 3, CompanyID: 1, Number: "INV-3", IssueDate: old, Total: 10},
	}
	w := ofType(Detect(invoices, now, DefaultConfig()), AlertWeekend)
	require.Len(t, w, 2)
	require.Equal(t, []int64{1}, w[0].SourceIDs)
	require.Equal(t, []int64{3}, w[1].SourceIDs)
	require.Equal(t, SeverityLow, w[0].Severity)
}

func TestDetectOrdersByTypeThenSource(t *testing.T) {
	sunday := time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC)
	invoices := []Invoice{
		{ID: 9, CompanyID: 1, ClientID: 1, IssueDate: sunday, Total: 5},
		{ID: 8, CompanyID: 1, ClientID: 1, IssueDate: sunday, Total: 5},
	}
	alerts := Detect(invoices, now, DefaultConfig())
	require.Len(t, alerts, 3)
	require.Equal(t, AlertDuplicate, alerts[0].Type)
	require.Equal(t, []int64{8}, alerts[1].SourceIDs)
	require.Equal(t, []int64{9}, alerts[2].SourceIDs)
}

type stubRepo struct {
	invoices []Invoice
	asked    int64
}

func (r *stubRepo) Invoices(_ context.Context, companyID int64) ([]Invoice, error) {
	r.asked = companyID
	return r.invoices, nil
}

func TestAnalyzeAllCompaniesKeepsGroupsApart(t *testing.T) {
	repo := &stubRepo{invoices: []Invoice{
		{ID: 1, CompanyID: 1, ClientID: 1, IssueDate: weekday(1), Total: 10},
		{ID: 2, CompanyID: 1, ClientID: 1, IssueDate: weekday(1), Total: 10},
		{ID: 3, CompanyID: 2, ClientID: 1, IssueDate: weekday(1), Total: 10},
	}}
	svc := NewService(repo, Config{}, nil)
	svc.WithNow(func() time.Time { return now })

	alerts, err := svc.Analyze(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, repo.asked)
	require.Len(t, alerts, 1)
	require.EqualValues(t, 1, alerts[0].CompanyID)
}
