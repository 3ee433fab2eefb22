package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/analytics"
	"github.com/odyssey-erp/odyssey-ledger/internal/billing"
	"github.com/odyssey-erp/odyssey-ledger/internal/companies"
	"github.com/odyssey-erp/odyssey-ledger/internal/fraud"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/reconcile"
	"github.com/odyssey-erp/odyssey-ledger/internal/recurring"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/vat"
)

// Services is the ledger service graph shared by the server, worker and CLI.
type Services struct {
	Companies   *companies.Repository
	Idempotency *shared.IdempotencyStore
	Ledger      *accounting.Service
	Reports     *reports.Service
	VAT         *vat.Service
	Reconcile   *reconcile.Service
	Recurring   *recurring.Service
	Fraud       *fraud.Service
	Analytics   *analytics.Service
	Billing     *billing.Service
}

// NewServices wires every service against Postgres. redisClient may be nil, in
// which case report caching is disabled.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger) *Services {
	if cfg == nil {
		cfg = &Config{VATPeriodMonths: vat.DefaultPeriodMonths, ReconcileThreshold: reconcile.DefaultThreshold}
	}
	reportCache := cache.NewVersioned(redisClient, cfg.ReportCacheTTL)

	ledger := accounting.NewService(accounting.NewRepository(pool), shared.NewAuditLogger(pool), reportCache, logger)
	reportService := reports.NewService(reports.NewRepository(pool), reportCache, logger)

	fraudCfg := fraud.DefaultConfig()
	if cfg.FraudOutlierK > 0 {
		fraudCfg.OutlierK = cfg.FraudOutlierK
	}
	if cfg.FraudLookbackDays > 0 {
		fraudCfg.LookbackDays = cfg.FraudLookbackDays
	}
	fraudService := fraud.NewService(fraud.NewRepository(pool), fraudCfg, logger)

	return &Services{
		Companies:   companies.NewRepository(pool),
		Idempotency: shared.NewIdempotencyStore(pool),
		Ledger:      ledger,
		Reports:     reportService,
		VAT:         vat.NewService(reportService, vat.NewRepository(pool), cfg.VATPeriodMonths, logger),
		Reconcile:   reconcile.NewService(reconcile.NewRepository(pool), cfg.ReconcileThreshold, logger),
		Recurring:   recurring.NewService(recurring.NewRepository(pool), ledger, logger),
		Fraud:       fraudService,
		Analytics:   analytics.NewService(reportService, analytics.NewRepository(pool), fraudService, logger),
		Billing:     billing.NewService(billing.NewRepository(pool), ledger, logger),
	}
}
