package recurring

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/billing"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes recurring billing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the recurring handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers recurring routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/recurring/process", h.handleProcess)
	r.Get("/recurring/profiles", h.handleList)
	r.Post("/recurring/profiles", h.handleCreate)
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.ProcessDueProfiles(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	profiles, err := h.service.ListProfiles(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, profiles)
}

type profileRequest struct {
	ClientID  int64              `json:"clientId" validate:"required"`
	Interval  string             `json:"interval" validate:"required,oneof=weekly biweekly monthly quarterly yearly"`
	StartDate string             `json:"startDate" validate:"required"`
	EndDate   string             `json:"endDate"`
	TaxRate   float64            `json:"taxRate" validate:"gte=0,lte=1"`
	LineItems []billing.LineItem `json:"lineItems" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req profileRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input := ProfileInput{
		CompanyID: companyID,
		ClientID:  req.ClientID,
		Interval:  Interval(req.Interval),
		TaxRate:   req.TaxRate,
		LineItems: req.LineItems,
	}
	if input.StartDate, err = time.Parse(time.DateOnly, req.StartDate); err != nil {
		httpx.RespondError(w, h.logger, shared.Validation("recurring: invalid start date %q", req.StartDate))
		return
	}
	if req.EndDate != "" {
		end, err := time.Parse(time.DateOnly, req.EndDate)
		if err != nil {
			httpx.RespondError(w, h.logger, shared.Validation("recurring: invalid end date %q", req.EndDate))
			return
		}
		input.EndDate = &end
	}
	profile, err := h.service.CreateProfile(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Data: profile})
}
