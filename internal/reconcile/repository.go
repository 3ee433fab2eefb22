package reconcile

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PgRepository persists reconciliation state in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// OpenTransactions lists the company's unreconciled bank lines.
func (r *PgRepository) OpenTransactions(ctx context.Context, companyID int64) ([]BankTransaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, txn_date, amount::float8, description, reference
FROM transactions WHERE company_id=$1 AND is_reconciled=false ORDER BY txn_date, id`, companyID)
	if err != nil {
		return nil, shared.StoreError("reconcile: open transactions", err)
	}
	defer rows.Close()
	var out []BankTransaction
	for rows.Next() {
		var t BankTransaction
		if err := rows.Scan(&t.ID, &t.Date, &t.Amount, &t.Description, &t.Reference); err != nil {
			return nil, shared.StoreError("reconcile: scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("reconcile: open transactions", err)
	}
	return out, nil
}

// OpenInvoices lists issued invoices that are not yet paid.
func (r *PgRepository) OpenInvoices(ctx context.Context, companyID int64) ([]Candidate, error) {
	return r.candidates(ctx, TargetInvoice, `SELECT i.id, i.issue_date, i.total::float8, i.number, c.name
FROM invoices i JOIN clients c ON c.id = i.client_id
WHERE i.company_id=$1 AND i.status IN ('sent','overdue') ORDER BY i.id`, companyID)
}

// OpenExpenses lists expenses without a bank match.
func (r *PgRepository) OpenExpenses(ctx context.Context, companyID int64) ([]Candidate, error) {
	return r.candidates(ctx, TargetExpense, `SELECT id, expense_date, total::float8, '', payee
FROM expenses WHERE company_id=$1 AND is_reconciled=false ORDER BY id`, companyID)
}

func (r *PgRepository) candidates(ctx context.Context, kind TargetKind, query string, companyID int64) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, shared.StoreError("reconcile: open "+string(kind)+"s", err)
	}
	defer rows.Close()
	var out []Candidate
	for rows.Next() {
		c := Candidate{Kind: kind}
		if err := rows.Scan(&c.ID, &c.Date, &c.Amount, &c.Number, &c.Name); err != nil {
			return nil, shared.StoreError("reconcile: scan "+string(kind), err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("reconcile: open "+string(kind)+"s", err)
	}
	return out, nil
}

// ApplyMatches writes every match in one transaction. Updates are guarded on the
// open state so a row claimed by a concurrent run is skipped, not overwritten.
func (r *PgRepository) ApplyMatches(ctx context.Context, companyID int64, matches []Match, at time.Time) ([]Match, error) {
	var applied []Match
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		applied = applied[:0]
		for _, m := range matches {
			ok, err := applyMatch(ctx, tx, companyID, m, at)
			if err != nil {
				return err
			}
			if ok {
				applied = append(applied, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func applyMatch(ctx context.Context, tx pgx.Tx, companyID int64, m Match, at time.Time) (bool, error) {
	cmd, err := tx.Exec(ctx, `UPDATE transactions
SET is_reconciled=true, matched_type=$3, matched_id=$4, reconciled_at=$5
WHERE company_id=$1 AND id=$2 AND is_reconciled=false`, companyID, m.TransactionID, string(m.Kind), m.TargetID, at)
	if err != nil {
		return false, shared.StoreError("reconcile: mark transaction", err)
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	var target string
	switch m.Kind {
	case TargetInvoice:
		target = `UPDATE invoices SET status='paid' WHERE company_id=$1 AND id=$2 AND status IN ('sent','overdue')`
	default:
		target = `UPDATE expenses SET is_reconciled=true, is_paid=true WHERE company_id=$1 AND id=$2 AND is_reconciled=false`
	}
	cmd, err = tx.Exec(ctx, target, companyID, m.TargetID)
	if err != nil {
		return false, shared.StoreError("reconcile: mark "+string(m.Kind), err)
	}
	if cmd.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `UPDATE transactions
SET is_reconciled=false, matched_type=NULL, matched_id=NULL, reconciled_at=NULL
WHERE company_id=$1 AND id=$2`, companyID, m.TransactionID); err != nil {
			return false, shared.StoreError("reconcile: release transaction", err)
		}
		return false, nil
	}
	return true, nil
}

// InsertTransactions bulk loads statement lines with COPY.
func (r *PgRepository) InsertTransactions(ctx context.Context, companyID int64, txns []BankTransaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []any{companyID, t.Date, shared.Round2(t.Amount), t.Description, t.Reference})
	}
	var n int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"transactions"},
			[]string{"company_id", "txn_date", "amount", "description", "reference"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return shared.StoreError("reconcile: copy transactions", err)
		}
		return nil
	})
	return int(n), err
}
