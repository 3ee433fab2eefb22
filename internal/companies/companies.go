// Package companies resolves the tenant of each ledger request.
package companies

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Company is a tenant owning one ledger.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository looks up and creates companies.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists reports whether the company is known.
func (r *Repository) Exists(ctx context.Context, companyID int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE id=$1)`, companyID).Scan(&ok); err != nil {
		return false, shared.StoreError("companies: exists", err)
	}
	return ok, nil
}

// Create inserts a company.
func (r *Repository) Create(ctx context.Context, name string) (Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Company{}, shared.Validation("companies: name required")
	}
	c := Company{Name: name}
	if err := r.pool.QueryRow(ctx, `INSERT INTO companies (name) VALUES ($1) RETURNING id, created_at`, name).Scan(&c.ID, &c.CreatedAt); err != nil {
		return Company{}, shared.StoreError("companies: create", err)
	}
	return c, nil
}

// ActiveIDs lists every company, used by background jobs that fan out per tenant.
func (r *Repository) ActiveIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return nil, shared.StoreError("companies: list", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, shared.StoreError("companies: scan", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("companies: list", err)
	}
	return ids, nil
}
