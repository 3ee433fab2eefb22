package accounting

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PostingStatus reports what happened to the ledger side of a business event.
type PostingStatus string

const (
	PostingPosted   PostingStatus = "posted"
	PostingDegraded PostingStatus = "degraded"
)

// PostingOutcome is attached to invoices and expenses. A degraded outcome means
// the business record was kept while its journal failed.
type PostingOutcome struct {
	Status    PostingStatus `json:"status"`
	JournalID int64         `json:"journalId,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// InvoicePoster posts invoice journals.
type InvoicePoster interface {
	PostInvoice(ctx context.Context, evt InvoiceEvent) (Journal, error)
}

// ExpensePoster posts expense journals.
type ExpensePoster interface {
	PostExpense(ctx context.Context, evt ExpenseEvent) (Journal, error)
}

// ErrPostingDegraded wraps the cause of a swallowed posting failure.
var ErrPostingDegraded = shared.NewError(shared.ErrPartialFailure, "accounting: journal posting failed, record kept")

// Outcome converts a recipe result into a PostingOutcome. Failures are logged at
// WARN and never returned; the caller's business write stands.
func Outcome(logger *slog.Logger, journal Journal, err error, attrs ...any) PostingOutcome {
	if err == nil {
		return PostingOutcome{Status: PostingPosted, JournalID: journal.ID}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("journal posting degraded", append(attrs, slog.Any("error", errors.Join(ErrPostingDegraded, err)))...)
	return PostingOutcome{Status: PostingDegraded, Error: shared.UserSafeMessage(err)}
}
