package billing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Poster is the ledger side of billing.
type Poster interface {
	accounting.InvoicePoster
	accounting.ExpensePoster
}

// Repository persists invoices and expenses.
type Repository interface {
	ClientBelongs(ctx context.Context, companyID, clientID int64) (bool, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository is the transactional write surface, shared with recurring billing.
type TxRepository interface {
	// InsertInvoice stores the header and items. An empty number is replaced
	// with FormatNumber of the new id.
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertExpense(ctx context.Context, exp Expense) (Expense, error)
}

// Service records invoices and expenses and posts them to the ledger.
type Service struct {
	repo   Repository
	ledger Poster
	logger *slog.Logger
}

// NewService wires the billing service.
func NewService(repo Repository, ledger Poster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, logger: logger}
}

// CreateInvoice persists an invoice and posts its journal. A posting failure
// leaves the invoice committed and is reported through Invoice.Posting.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Invoice{}, err
	}
	if !input.DueDate.IsZero() && input.DueDate.Before(input.IssueDate) {
		return Invoice{}, shared.Validation("billing: due date before issue date")
	}
	ok, err := s.repo.ClientBelongs(ctx, input.CompanyID, input.ClientID)
	if err != nil {
		return Invoice{}, err
	}
	if !ok {
		return Invoice{}, ErrClientNotFound
	}

	draft := BuildInvoice(input.CompanyID, input.ClientID, input.IssueDate, input.Items, input.TaxRate)
	draft.Number = strings.TrimSpace(input.Number)
	if !input.DueDate.IsZero() {
		draft.DueDate = input.DueDate
	}
	if draft.Total <= 0 {
		return Invoice{}, shared.Validation("billing: invoice total must be positive")
	}

	var inv Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.InsertInvoice(ctx, draft)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}

	journal, postErr := s.ledger.PostInvoice(ctx, inv.Event())
	inv.Posting = accounting.Outcome(s.logger, journal, postErr,
		slog.Int64("company_id", inv.CompanyID), slog.Int64("invoice_id", inv.ID))
	return inv, nil
}

// CreateExpense persists an expense and posts its journal under the same
// partial-failure policy as CreateInvoice.
func (s *Service) CreateExpense(ctx context.Context, input CreateExpenseInput) (Expense, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Expense{}, err
	}
	subtotal := decimal.NewFromFloat(input.Subtotal).Round(2)
	tax := decimal.NewFromFloat(input.Tax).Round(2)
	category := input.CategoryCode
	if category == "" {
		category = accounting.CodeOperatingExpenses
	}
	draft := Expense{
		CompanyID:    input.CompanyID,
		Payee:        strings.TrimSpace(input.Payee),
		CategoryCode: category,
		Date:         input.Date,
		Subtotal:     subtotal.InexactFloat64(),
		Tax:          tax.InexactFloat64(),
		Total:        subtotal.Add(tax).InexactFloat64(),
		Paid:         input.Paid,
	}

	var exp Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		exp, err = tx.InsertExpense(ctx, draft)
		return err
	})
	if err != nil {
		return Expense{}, err
	}

	journal, postErr := s.ledger.PostExpense(ctx, exp.Event())
	exp.Posting = accounting.Outcome(s.logger, journal, postErr,
		slog.Int64("company_id", exp.CompanyID), slog.Int64("expense_id", exp.ID))
	return exp, nil
}
