package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// IdempotencyKeyHeader lets clients retry creation calls safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// KeyStore remembers processed idempotency keys.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, companyID int64, key, module string) error
	Delete(ctx context.Context, companyID int64, key string) error
}

// Handler exposes invoice and expense creation.
type Handler struct {
	logger  *slog.Logger
	service *Service
	keys    KeyStore
}

// NewHandler builds the billing handler. keys may be nil to disable replay protection.
func NewHandler(logger *slog.Logger, service *Service, keys KeyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, keys: keys}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.handleCreateInvoice)
	r.Post("/expenses", h.handleCreateExpense)
}

type invoiceRequest struct {
	ClientID  int64      `json:"clientId" validate:"required"`
	Number    string     `json:"number"`
	IssueDate string     `json:"issueDate" validate:"required"`
	DueDate   string     `json:"dueDate"`
	TaxRate   float64    `json:"taxRate" validate:"gte=0,lte=1"`
	Items     []LineItem `json:"items" validate:"required,min=1,dive"`
}

type expenseRequest struct {
	Payee        string  `json:"payee" validate:"required"`
	CategoryCode string  `json:"categoryCode"`
	Date         string  `json:"date" validate:"required"`
	Subtotal     float64 `json:"subtotal" validate:"gt=0"`
	Tax          float64 `json:"tax" validate:"gte=0"`
	Paid         bool    `json:"paid"`
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req invoiceRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input := CreateInvoiceInput{
		CompanyID: companyID,
		ClientID:  req.ClientID,
		Number:    req.Number,
		TaxRate:   req.TaxRate,
		Items:     req.Items,
	}
	if input.IssueDate, err = parseDate(req.IssueDate); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if req.DueDate != "" {
		if input.DueDate, err = parseDate(req.DueDate); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	h.once(w, r, companyID, "billing.invoice", func(ctx context.Context) (any, error) {
		return h.service.CreateInvoice(ctx, input)
	})
}

func (h *Handler) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req expenseRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input := CreateExpenseInput{
		CompanyID:    companyID,
		Payee:        req.Payee,
		CategoryCode: req.CategoryCode,
		Subtotal:     req.Subtotal,
		Tax:          req.Tax,
		Paid:         req.Paid,
	}
	if input.Date, err = parseDate(req.Date); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.once(w, r, companyID, "billing.expense", func(ctx context.Context) (any, error) {
		return h.service.CreateExpense(ctx, input)
	})
}

// once claims the request's idempotency key, if any, before running create.
// The key is released when create fails so the client may retry.
func (h *Handler) once(w http.ResponseWriter, r *http.Request, companyID int64, module string, create func(context.Context) (any, error)) {
	key := r.Header.Get(IdempotencyKeyHeader)
	if key != "" && h.keys != nil {
		if err := h.keys.CheckAndInsert(r.Context(), companyID, key, module); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	out, err := create(r.Context())
	if err != nil {
		if key != "" && h.keys != nil {
			if derr := h.keys.Delete(r.Context(), companyID, key); derr != nil {
				h.logger.Warn("release idempotency key", slog.String("module", module), slog.Any("error", derr))
			}
		}
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Data: out})
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, shared.Validation("billing: invalid date %q", value)
	}
	return t, nil
}
