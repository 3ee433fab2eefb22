package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PgRepository reads operational figures from Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// ReceivablesOutstanding sums unpaid invoices issued on or before asOf.
func (r *PgRepository) ReceivablesOutstanding(ctx context.Context, companyID int64, asOf time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0)::float8 FROM invoices
WHERE company_id=$1 AND status IN ('sent','overdue') AND issue_date <= $2`, companyID, asOf).Scan(&total)
	if err != nil {
		return 0, shared.StoreError("analytics: receivables", err)
	}
	return total, nil
}

// BankActivity counts bank lines dated within [start, end].
func (r *PgRepository) BankActivity(ctx context.Context, companyID int64, start, end time.Time) (BankActivity, error) {
	var out BankActivity
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT is_reconciled) FROM transactions
WHERE company_id=$1 AND txn_date BETWEEN $2 AND $3`, companyID, start, end).Scan(&out.Total, &out.Unreconciled)
	if err != nil {
		return BankActivity{}, shared.StoreError("analytics: bank activity", err)
	}
	return out, nil
}
