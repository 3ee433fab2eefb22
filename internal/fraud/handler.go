package fraud

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes fraud alerts.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the fraud handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers fraud routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/fraud/alerts", h.handleAlerts)
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	alerts, err := h.service.Analyze(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]any{"alerts": alerts, "count": len(alerts)})
}
