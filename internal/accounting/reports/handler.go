package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes ledger reports over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounting/trial-balance", h.handleTrialBalance)
	r.Get("/accounting/profit-loss", h.handleProfitAndLoss)
	r.Get("/accounting/balance-sheet", h.handleBalanceSheet)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	start, end, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), companyID, start, end)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, tb)
}

func (h *Handler) handleProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	start, end, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), companyID, start, end)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, pl)
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		if asOf, err = time.Parse(time.DateOnly, raw); err != nil {
			httpx.RespondError(w, h.logger, ErrInvalidRange)
			return
		}
	}
	bs, err := h.service.BalanceSheet(r.Context(), companyID, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, bs)
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	end, err := time.Parse(time.DateOnly, r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return start, end, nil
}
