package vat

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PgRepository reads raw VAT figures from invoices and expenses.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// RawFigures sums non-void invoices and all expenses dated within [start, end].
func (r *PgRepository) RawFigures(ctx context.Context, companyID int64, start, end time.Time) (RawFigures, error) {
	var out RawFigures
	err := r.pool.QueryRow(ctx, `SELECT
    COALESCE(SUM(subtotal) FILTER (WHERE tax > 0), 0)::float8,
    COALESCE(SUM(subtotal) FILTER (WHERE tax = 0), 0)::float8,
    COALESCE(SUM(tax), 0)::float8
FROM invoices
WHERE company_id = $1 AND issue_date BETWEEN $2 AND $3 AND status <> 'void'`, companyID, start, end).
		Scan(&out.StandardRatedSales, &out.ZeroRatedSales, &out.OutputTax)
	if err != nil {
		return RawFigures{}, shared.StoreError("vat: invoice figures", err)
	}
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(subtotal), 0)::float8, COALESCE(SUM(tax), 0)::float8
FROM expenses
WHERE company_id = $1 AND expense_date BETWEEN $2 AND $3`, companyID, start, end).
		Scan(&out.Purchases, &out.InputTax)
	if err != nil {
		return RawFigures{}, shared.StoreError("vat: expense figures", err)
	}
	return out, nil
}
