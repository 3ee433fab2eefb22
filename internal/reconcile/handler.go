package reconcile

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const maxStatementBytes = 10 << 20

// Handler exposes reconciliation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the reconciliation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reconcile/auto", h.handleAuto)
	r.Post("/reconcile/import", h.handleImport)
}

type autoRequest struct {
	Threshold float64 `json:"threshold" validate:"gte=0,lte=1"`
}

func (h *Handler) handleAuto(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req autoRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.AutoReconcile(r.Context(), companyID, req.Threshold)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, result)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.CompanyID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxStatementBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, h.logger, shared.Validation("reconcile: multipart field \"file\" required"))
		return
	}
	defer file.Close()
	result, err := h.service.ImportStatement(r.Context(), companyID, file)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, result)
}
