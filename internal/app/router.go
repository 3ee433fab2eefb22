package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/analytics"
	"github.com/odyssey-erp/odyssey-ledger/internal/billing"
	"github.com/odyssey-erp/odyssey-ledger/internal/companies"
	"github.com/odyssey-erp/odyssey-ledger/internal/fraud"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/reconcile"
	"github.com/odyssey-erp/odyssey-ledger/internal/recurring"
	"github.com/odyssey-erp/odyssey-ledger/internal/vat"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Companies companies.Checker
	Metrics   *observability.Metrics

	AccountingHandler *accounting.Handler
	ReportsHandler    *reports.Handler
	VATHandler        *vat.Handler
	ReconcileHandler  *reconcile.Handler
	RecurringHandler  *recurring.Handler
	FraudHandler      *fraud.Handler
	AnalyticsHandler  *analytics.Handler
	BillingHandler    *billing.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	// Every ledger endpoint is scoped to one tenant.
	tenant := companies.Middleware{Companies: params.Companies, Logger: logger}
	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireCompany)
		if params.AccountingHandler != nil {
			params.AccountingHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
		if params.VATHandler != nil {
			params.VATHandler.MountRoutes(r)
		}
		if params.ReconcileHandler != nil {
			params.ReconcileHandler.MountRoutes(r)
		}
		if params.RecurringHandler != nil {
			params.RecurringHandler.MountRoutes(r)
		}
		if params.FraudHandler != nil {
			params.FraudHandler.MountRoutes(r)
		}
		if params.AnalyticsHandler != nil {
			params.AnalyticsHandler.MountRoutes(r)
		}
		if params.BillingHandler != nil {
			params.BillingHandler.MountRoutes(r)
		}
	})

	return r
}
