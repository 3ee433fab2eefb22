package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PgRepository aggregates journal lines in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres backed report repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// ListAccounts returns the company's chart ordered by code.
func (r *PgRepository) ListAccounts(ctx context.Context, companyID int64) ([]accounting.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, code, name, type, parent_code, description, created_at
FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, shared.StoreError("reports: list accounts", err)
	}
	defer rows.Close()
	var accounts []accounting.Account
	for rows.Next() {
		var a accounting.Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.ParentCode, &a.Description, &a.CreatedAt); err != nil {
			return nil, shared.StoreError("reports: scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("reports: list accounts", err)
	}
	return accounts, nil
}

// SumLines totals debit and credit per account for journals dated within [start, end].
func (r *PgRepository) SumLines(ctx context.Context, companyID int64, start, end time.Time) (map[int64]LineSum, error) {
	rows, err := r.pool.Query(ctx, `SELECT jl.account_id, COALESCE(SUM(jl.debit),0)::float8, COALESCE(SUM(jl.credit),0)::float8
FROM journal_lines jl
JOIN journals j ON j.id = jl.journal_id
WHERE j.company_id = $1 AND j.journal_date BETWEEN $2 AND $3
GROUP BY jl.account_id`, companyID, start, end)
	if err != nil {
		return nil, shared.StoreError("reports: sum lines", err)
	}
	defer rows.Close()
	out := make(map[int64]LineSum)
	for rows.Next() {
		var (
			id  int64
			sum LineSum
		)
		if err := rows.Scan(&id, &sum.Debit, &sum.Credit); err != nil {
			return nil, shared.StoreError("reports: scan sums", err)
		}
		out[id] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("reports: sum lines", err)
	}
	return out, nil
}

// UnbalancedJournals lists journals whose lines differ by more than a cent, or
// that have no lines at all.
func (r *PgRepository) UnbalancedJournals(ctx context.Context, companyID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT j.id FROM journals j
LEFT JOIN journal_lines l ON l.journal_id = j.id
WHERE j.company_id=$1
GROUP BY j.id
HAVING COUNT(l.id) < 2 OR ABS(COALESCE(SUM(l.debit), 0) - COALESCE(SUM(l.credit), 0)) > 0.01
ORDER BY j.id`, companyID)
	if err != nil {
		return nil, shared.StoreError("reports: unbalanced journals", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, shared.StoreError("reports: scan journal id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("reports: unbalanced journals", err)
	}
	return ids, nil
}
