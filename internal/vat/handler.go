package vat

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes the VAT engine.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the VAT handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers VAT routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/vat/period", h.handlePeriod)
	r.Get("/vat/summary", h.handleSummary)
	r.Get("/vat/vat201", h.handleVAT201)
	r.Get("/vat/vat201.xlsx", h.handleVAT201XLSX)
}

func (h *Handler) handlePeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.ResolvePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]any{"period": period, "label": period.Label()})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	companyID, period, err := h.params(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	summary, err := h.service.CalculateForPeriod(r.Context(), companyID, period.Start, period.End)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, summary)
}

func (h *Handler) handleVAT201(w http.ResponseWriter, r *http.Request) {
	companyID, period, err := h.params(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	form, err := h.service.GenerateVAT201(r.Context(), companyID, period.Start, period.End)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, form)
}

func (h *Handler) handleVAT201XLSX(w http.ResponseWriter, r *http.Request) {
	companyID, period, err := h.params(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	form, err := h.service.GenerateVAT201(r.Context(), companyID, period.Start, period.End)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteVAT201XLSX(&buf, form); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=vat201-%s.xlsx", period.Start.Format("2006-01")))
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) params(r *http.Request) (int64, Period, error) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		return 0, Period{}, err
	}
	period, err := h.service.ResolvePeriod(r.URL.Query().Get("period"))
	if err != nil {
		return 0, Period{}, err
	}
	return companyID, period, nil
}
