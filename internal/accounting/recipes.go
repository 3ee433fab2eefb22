package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// InvoiceEvent carries the figures of an issued invoice.
type InvoiceEvent struct {
	CompanyID int64
	InvoiceID int64
	Number    string
	Date      time.Time
	Total     float64
	Tax       float64
}

// ExpenseEvent carries the figures of a recorded expense.
type ExpenseEvent struct {
	CompanyID    int64
	ExpenseID    int64
	Payee        string
	Date         time.Time
	Total        float64
	Tax          float64
	CategoryCode string
	Paid         bool
}

// PostInvoice books Dr Accounts Receivable / Cr Sales Revenue / Cr VAT Output.
// Posting the same invoice twice returns the journal of the first posting.
func (s *Service) PostInvoice(ctx context.Context, evt InvoiceEvent) (Journal, error) {
	if evt.InvoiceID <= 0 {
		return Journal{}, shared.Validation("accounting: invoice id required")
	}
	total, tax, net, err := splitTax(evt.Total, evt.Tax)
	if err != nil {
		return Journal{}, err
	}
	accounts, err := s.resolveCodes(ctx, evt.CompanyID, CodeAccountsReceivable, CodeSalesRevenue, CodeVATOutput)
	if err != nil {
		return Journal{}, err
	}
	desc := fmt.Sprintf("Invoice %s", evt.Number)
	lines := []PostingLineInput{
		{AccountID: accounts[CodeAccountsReceivable].ID, Debit: total, Description: desc},
		{AccountID: accounts[CodeSalesRevenue].ID, Credit: net, Description: desc},
	}
	if tax > 0 {
		lines = append(lines, PostingLineInput{AccountID: accounts[CodeVATOutput].ID, Credit: tax, Description: "VAT on " + desc})
	}
	return s.postIdempotent(ctx, PostingInput{
		CompanyID: evt.CompanyID,
		Date:      evt.Date,
		Source:    SourceInvoice,
		SourceID:  evt.InvoiceID,
		Reference: evt.Number,
		Memo:      desc,
		Lines:     lines,
	})
}

// PostExpense books Dr expense category / Dr VAT Input against Cash & Bank when
// the expense is paid, otherwise against Accounts Payable.
func (s *Service) PostExpense(ctx context.Context, evt ExpenseEvent) (Journal, error) {
	if evt.ExpenseID <= 0 {
		return Journal{}, shared.Validation("accounting: expense id required")
	}
	total, tax, net, err := splitTax(evt.Total, evt.Tax)
	if err != nil {
		return Journal{}, err
	}
	category := evt.CategoryCode
	if category == "" {
		category = CodeOperatingExpenses
	}
	counter := CodeAccountsPayable
	if evt.Paid {
		counter = CodeCashBank
	}
	accounts, err := s.resolveCodes(ctx, evt.CompanyID, category, CodeVATInput, counter)
	if err != nil {
		return Journal{}, err
	}
	if accounts[category].Type != AccountTypeExpense {
		return Journal{}, shared.Validation("accounting: account %s is not an expense account", category)
	}
	desc := fmt.Sprintf("Expense %s", evt.Payee)
	lines := []PostingLineInput{
		{AccountID: accounts[category].ID, Debit: net, Description: desc},
	}
	if tax > 0 {
		lines = append(lines, PostingLineInput{AccountID: accounts[CodeVATInput].ID, Debit: tax, Description: "VAT on " + desc})
	}
	lines = append(lines, PostingLineInput{AccountID: accounts[counter].ID, Credit: total, Description: desc})
	return s.postIdempotent(ctx, PostingInput{
		CompanyID: evt.CompanyID,
		Date:      evt.Date,
		Source:    SourceExpense,
		SourceID:  evt.ExpenseID,
		Reference: fmt.Sprintf("EXP-%d", evt.ExpenseID),
		Memo:      desc,
		Lines:     lines,
	})
}

// splitTax rounds total and tax to cents and derives the net amount.
func splitTax(total, tax float64) (float64, float64, float64, error) {
	t := decimal.NewFromFloat(total).Round(2)
	x := decimal.NewFromFloat(tax).Round(2)
	if !t.IsPositive() {
		return 0, 0, 0, shared.Validation("accounting: total must be positive")
	}
	if x.IsNegative() || x.GreaterThan(t) {
		return 0, 0, 0, shared.Validation("accounting: tax must be between 0 and total")
	}
	return t.InexactFloat64(), x.InexactFloat64(), t.Sub(x).InexactFloat64(), nil
}

func (s *Service) resolveCodes(ctx context.Context, companyID int64, codes ...string) (map[string]Account, error) {
	var accounts map[string]Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.GetAccountsByCodes(ctx, companyID, codes)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrChartMissing
	}
	for _, code := range codes {
		if _, ok := accounts[code]; !ok {
			return nil, fmt.Errorf("%w: code %s", ErrAccountNotFound, code)
		}
	}
	return accounts, nil
}
