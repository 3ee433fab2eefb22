package billing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PgRepository stores invoices and expenses in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// ClientBelongs reports whether clientID exists under companyID.
func (r *PgRepository) ClientBelongs(ctx context.Context, companyID, clientID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id=$1 AND company_id=$2)`, clientID, companyID).Scan(&ok)
	if err != nil {
		return false, shared.StoreError("billing: client lookup", err)
	}
	return ok, nil
}

// WithTx runs fn inside a database transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTx(tx))
	})
}

// PgTx implements TxRepository on an open transaction.
type PgTx struct {
	tx pgx.Tx
}

// NewTx wraps tx so other modules can write invoices inside their own transaction.
func NewTx(tx pgx.Tx) *PgTx {
	return &PgTx{tx: tx}
}

// InsertInvoice stores the invoice header and its items.
func (t *PgTx) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (company_id, client_id, number, issue_date, due_date, subtotal, tax, total, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		inv.CompanyID, inv.ClientID, inv.Number, inv.IssueDate, inv.DueDate,
		shared.Numeric(inv.Subtotal), shared.Numeric(inv.Tax), shared.Numeric(inv.Total), string(inv.Status),
	).Scan(&inv.ID)
	if err != nil {
		return Invoice{}, shared.StoreError("billing: insert invoice", err)
	}
	if inv.Number == "" {
		inv.Number = FormatNumber(inv.ID)
		if _, err := t.tx.Exec(ctx, `UPDATE invoices SET number=$1 WHERE id=$2`, inv.Number, inv.ID); err != nil {
			return Invoice{}, shared.StoreError("billing: number invoice", err)
		}
	}

	batch := &pgx.Batch{}
	for _, item := range inv.Items {
		batch.Queue(`INSERT INTO invoice_items (invoice_id, description, quantity, unit_price, amount)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			inv.ID, item.Description, item.Quantity, shared.Numeric(item.UnitPrice), shared.Numeric(item.Amount))
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for i := range inv.Items {
		if err := br.QueryRow().Scan(&inv.Items[i].ID); err != nil {
			return Invoice{}, shared.StoreError("billing: insert invoice item", err)
		}
	}
	return inv, nil
}

// InsertExpense stores an expense.
func (t *PgTx) InsertExpense(ctx context.Context, exp Expense) (Expense, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO expenses (company_id, payee, category_code, expense_date, subtotal, tax, total, is_paid)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		exp.CompanyID, exp.Payee, exp.CategoryCode, exp.Date,
		shared.Numeric(exp.Subtotal), shared.Numeric(exp.Tax), shared.Numeric(exp.Total), exp.Paid,
	).Scan(&exp.ID)
	if err != nil {
		return Expense{}, shared.StoreError("billing: insert expense", err)
	}
	return exp, nil
}
