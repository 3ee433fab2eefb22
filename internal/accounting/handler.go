package accounting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler wires ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounting/coa/init", h.handleInitChart)
	r.Get("/accounting/accounts", h.handleListAccounts)
	r.Post("/accounting/journals", h.handlePostJournal)
	r.Get("/accounting/journals/{id}", h.handleGetJournal)
	r.Post("/accounting/journals/{id}/reverse", h.handleReverse)
}

func (h *Handler) handleInitChart(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	created, err := h.service.InitializeChartOfAccounts(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]int{"created": created})
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, accounts)
}

type journalLineRequest struct {
	AccountCode string  `json:"accountCode" validate:"required"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description"`
}

type journalRequest struct {
	Date      string               `json:"date" validate:"required"`
	Reference string               `json:"reference"`
	Memo      string               `json:"memo"`
	Lines     []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) handlePostJournal(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req journalRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input := PostingInput{
		CompanyID: companyID,
		Date:      date,
		Source:    SourceManual,
		Reference: req.Reference,
		Memo:      req.Memo,
	}
	for _, line := range req.Lines {
		account, err := h.service.ResolveAccount(r.Context(), companyID, line.AccountCode)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		input.Lines = append(input.Lines, PostingLineInput{
			AccountID:   account.ID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	journal, err := h.service.Post(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Data: journal})
}

func (h *Handler) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	companyID, journalID, err := journalParams(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	journal, err := h.service.GetJournal(r.Context(), companyID, journalID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, journal)
}

type reverseRequest struct {
	Date string `json:"date"`
	Memo string `json:"memo"`
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	companyID, journalID, err := journalParams(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req reverseRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input := ReverseInput{CompanyID: companyID, JournalID: journalID, Memo: req.Memo}
	if req.Date != "" {
		if input.Date, err = parseDate(req.Date); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	journal, err := h.service.Reverse(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Data: journal})
}

func journalParams(r *http.Request) (int64, int64, error) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		return 0, 0, err
	}
	journalID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || journalID <= 0 {
		return 0, 0, shared.Validation("accounting: invalid journal id")
	}
	return companyID, journalID, nil
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, shared.Validation("accounting: invalid date %q", value)
	}
	return t, nil
}
