package recurring

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/billing"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const serializationFailure = "40001"

const profileColumns = `id, company_id, client_id, interval, start_date, next_run_date, end_date, line_items, tax_rate::float8, is_active, last_run_at`

// PgRepository stores recurring profiles in Postgres.
type PgRepository struct {
	pool    *pgxpool.Pool
	billing *billing.PgRepository
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, billing: billing.NewRepository(pool)}
}

// DueProfiles lists active profiles whose next run is on or before today.
func (r *PgRepository) DueProfiles(ctx context.Context, companyID int64, today time.Time) ([]Profile, error) {
	return r.query(ctx, `SELECT `+profileColumns+` FROM recurring_invoices
WHERE is_active AND next_run_date <= $2 AND ($1::bigint = 0 OR company_id = $1::bigint)
ORDER BY next_run_date, id`, companyID, today)
}

// ListProfiles lists every profile of a company.
func (r *PgRepository) ListProfiles(ctx context.Context, companyID int64) ([]Profile, error) {
	return r.query(ctx, `SELECT `+profileColumns+` FROM recurring_invoices WHERE company_id=$1 ORDER BY id`, companyID)
}

// ClientBelongs reports whether clientID exists under companyID.
func (r *PgRepository) ClientBelongs(ctx context.Context, companyID, clientID int64) (bool, error) {
	return r.billing.ClientBelongs(ctx, companyID, clientID)
}

// InsertProfile stores a new profile.
func (r *PgRepository) InsertProfile(ctx context.Context, p Profile) (Profile, error) {
	items, err := json.Marshal(p.LineItems)
	if err != nil {
		return Profile{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO recurring_invoices (company_id, client_id, interval, start_date, next_run_date, end_date, line_items, tax_rate, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		p.CompanyID, p.ClientID, string(p.Interval), p.StartDate, p.NextRunDate, p.EndDate, items, p.TaxRate, p.Active,
	).Scan(&p.ID)
	if err != nil {
		return Profile{}, shared.StoreError("recurring: insert profile", err)
	}
	return p, nil
}

// WithTx runs fn inside a database transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgTx{PgTx: billing.NewTx(tx), tx: tx})
	})
}

type pgTx struct {
	*billing.PgTx
	tx pgx.Tx
}

func (t pgTx) AdvanceProfile(ctx context.Context, adv Advance) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE recurring_invoices SET next_run_date=$3, is_active=$4, last_run_at=$5
WHERE id=$1 AND next_run_date=$2 AND is_active`, adv.ProfileID, adv.From, adv.To, adv.Active, adv.RanAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
			return false, ErrProfileAdvanced
		}
		return false, shared.StoreError("recurring: advance profile", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) query(ctx context.Context, sql string, args ...any) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.StoreError("recurring: list profiles", err)
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		var (
			p        Profile
			interval string
			items    []byte
		)
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.ClientID, &interval, &p.StartDate, &p.NextRunDate, &p.EndDate, &items, &p.TaxRate, &p.Active, &p.LastRunAt); err != nil {
			return nil, shared.StoreError("recurring: scan profile", err)
		}
		p.Interval = Interval(interval)
		// malformed items surface as a per-profile failure when fired
		if err := json.Unmarshal(items, &p.LineItems); err != nil {
			p.LineItems = nil
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("recurring: list profiles", err)
	}
	return out, nil
}
