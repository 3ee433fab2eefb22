package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// DefaultPaymentTermDays sets the due date when none is supplied.
const DefaultPaymentTermDays = 30

// InvoiceStatus follows the invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceVoid    InvoiceStatus = "void"
)

// ErrClientNotFound is returned when the client is unknown to the company.
var ErrClientNotFound = shared.NewError(shared.ErrNotFound, "billing: client not found")

// LineItem is a billable line as entered by users or stored on a recurring profile.
type LineItem struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

// InvoiceItem is a persisted invoice line.
type InvoiceItem struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
}

// Invoice is an issued sales invoice.
type Invoice struct {
	ID        int64                     `json:"id"`
	CompanyID int64                     `json:"companyId"`
	ClientID  int64                     `json:"clientId"`
	Number    string                    `json:"number"`
	IssueDate time.Time                 `json:"issueDate"`
	DueDate   time.Time                 `json:"dueDate"`
	Subtotal  float64                   `json:"subtotal"`
	Tax       float64                   `json:"tax"`
	Total     float64                   `json:"total"`
	Status    InvoiceStatus             `json:"status"`
	Items     []InvoiceItem             `json:"items"`
	Posting   accounting.PostingOutcome `json:"posting"`
}

// Expense is a recorded purchase.
type Expense struct {
	ID           int64                     `json:"id"`
	CompanyID    int64                     `json:"companyId"`
	Payee        string                    `json:"payee"`
	CategoryCode string                    `json:"categoryCode"`
	Date         time.Time                 `json:"date"`
	Subtotal     float64                   `json:"subtotal"`
	Tax          float64                   `json:"tax"`
	Total        float64                   `json:"total"`
	Paid         bool                      `json:"paid"`
	Posting      accounting.PostingOutcome `json:"posting"`
}

// CreateInvoiceInput describes a new invoice.
type CreateInvoiceInput struct {
	CompanyID int64      `validate:"required"`
	ClientID  int64      `validate:"required"`
	Number    string     `validate:"max=64"`
	IssueDate time.Time  `validate:"required"`
	DueDate   time.Time
	TaxRate   float64    `validate:"gte=0,lte=1"`
	Items     []LineItem `validate:"required,min=1,dive"`
}

// CreateExpenseInput describes a new expense.
type CreateExpenseInput struct {
	CompanyID    int64     `validate:"required"`
	Payee        string    `validate:"required,max=200"`
	CategoryCode string    `validate:"omitempty,numeric"`
	Date         time.Time `validate:"required"`
	Subtotal     float64   `validate:"gt=0"`
	Tax          float64   `validate:"gte=0"`
	Paid         bool
}

// BuildInvoice prices items at taxRate and returns an unsaved invoice. Amounts
// are rounded per line, then tax is applied to the subtotal.
func BuildInvoice(companyID, clientID int64, issue time.Time, items []LineItem, taxRate float64) Invoice {
	subtotal := decimal.Zero
	rows := make([]InvoiceItem, 0, len(items))
	for _, item := range items {
		amount := decimal.NewFromFloat(item.Quantity).Mul(decimal.NewFromFloat(item.UnitPrice)).Round(2)
		subtotal = subtotal.Add(amount)
		rows = append(rows, InvoiceItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   shared.Round2(item.UnitPrice),
			Amount:      amount.InexactFloat64(),
		})
	}
	tax := subtotal.Mul(decimal.NewFromFloat(taxRate)).Round(2)
	return Invoice{
		CompanyID: companyID,
		ClientID:  clientID,
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 0, DefaultPaymentTermDays),
		Subtotal:  subtotal.InexactFloat64(),
		Tax:       tax.InexactFloat64(),
		Total:     subtotal.Add(tax).InexactFloat64(),
		Status:    InvoiceSent,
		Items:     rows,
	}
}

// FormatNumber renders the default invoice number for id.
func FormatNumber(id int64) string {
	return fmt.Sprintf("INV-%06d", id)
}

// Event converts the invoice into the ledger recipe input.
func (inv Invoice) Event() accounting.InvoiceEvent {
	return accounting.InvoiceEvent{
		CompanyID: inv.CompanyID,
		InvoiceID: inv.ID,
		Number:    inv.Number,
		Date:      inv.IssueDate,
		Total:     inv.Total,
		Tax:       inv.Tax,
	}
}

// Event converts the expense into the ledger recipe input.
func (e Expense) Event() accounting.ExpenseEvent {
	return accounting.ExpenseEvent{
		CompanyID:    e.CompanyID,
		ExpenseID:    e.ID,
		Payee:        e.Payee,
		Date:         e.Date,
		Total:        e.Total,
		Tax:          e.Tax,
		CategoryCode: e.CategoryCode,
		Paid:         e.Paid,
	}
}
