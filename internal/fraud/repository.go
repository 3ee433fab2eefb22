package fraud

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PgRepository reads invoices from Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Invoices lists non-void invoices, all companies when companyID is 0.
func (r *PgRepository) Invoices(ctx context.Context, companyID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, client_id, number, issue_date, total::float8
FROM invoices
WHERE ($1::bigint = 0 OR company_id = $1::bigint) AND status <> 'void'
ORDER BY company_id, id`, companyID)
	if err != nil {
		return nil, shared.StoreError("fraud: list invoices", err)
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.ClientID, &inv.Number, &inv.IssueDate, &inv.Total); err != nil {
			return nil, shared.StoreError("fraud: scan invoice", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("fraud: list invoices", err)
	}
	return out, nil
}
