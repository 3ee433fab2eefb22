package accounting

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockCompany(ctx context.Context, companyID int64) error
	InsertAccountIfMissing(ctx context.Context, companyID int64, seed SeedAccount) (bool, error)
	GetAccountByCode(ctx context.Context, companyID int64, code string) (Account, error)
	GetAccountsByCodes(ctx context.Context, companyID int64, codes []string) (map[string]Account, error)
	ListAccounts(ctx context.Context, companyID int64) ([]Account, error)
	CountOwnedAccounts(ctx context.Context, companyID int64, ids []int64) (int, error)
	InsertJournal(ctx context.Context, header Journal) (Journal, error)
	InsertJournalLines(ctx context.Context, journalID int64, lines []PostingLineInput) ([]JournalLine, error)
	GetJournalWithLines(ctx context.Context, companyID, journalID int64) (Journal, error)
	GetJournalBySourceKey(ctx context.Context, companyID int64, key uuid.UUID) (Journal, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) LockCompany(ctx context.Context, companyID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM companies WHERE id=$1 FOR UPDATE`, companyID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrCompanyNotFound
		}
		return shared.StoreError("accounting: lock company", err)
	}
	return nil
}

func (r *txRepository) InsertAccountIfMissing(ctx context.Context, companyID int64, seed SeedAccount) (bool, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, parent_code, description)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT ON CONSTRAINT uq_accounts_code DO NOTHING
RETURNING id`, companyID, seed.Code, seed.Name, string(seed.Type), nullString(seed.Parent), seed.Description).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, shared.StoreError("accounting: insert account", err)
	}
	return true, nil
}

const accountColumns = `id, company_id, code, name, type, parent_code, description, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.ParentCode, &a.Description, &a.CreatedAt)
	return a, err
}

func (r *txRepository) GetAccountByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	account, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, shared.StoreError("accounting: get account", err)
	}
	return account, nil
}

func (r *txRepository) GetAccountsByCodes(ctx context.Context, companyID int64, codes []string) (map[string]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code = ANY($2)`, companyID, codes)
	if err != nil {
		return nil, shared.StoreError("accounting: get accounts", err)
	}
	defer rows.Close()
	out := make(map[string]Account, len(codes))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, shared.StoreError("accounting: scan account", err)
		}
		out[a.Code] = a
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("accounting: get accounts", err)
	}
	return out, nil
}

func (r *txRepository) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, shared.StoreError("accounting: list accounts", err)
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, shared.StoreError("accounting: scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreError("accounting: list accounts", err)
	}
	return accounts, nil
}

func (r *txRepository) CountOwnedAccounts(ctx context.Context, companyID int64, ids []int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE company_id=$1 AND id = ANY($2)`, companyID, ids).Scan(&count)
	if err != nil {
		return 0, shared.StoreError("accounting: count accounts", err)
	}
	return count, nil
}

func (r *txRepository) InsertJournal(ctx context.Context, header Journal) (Journal, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journals (company_id, journal_date, source, source_id, source_key, reference, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		header.CompanyID, header.Date, string(header.Source), header.SourceID, header.SourceKey, header.Reference, header.Memo).
		Scan(&header.ID, &header.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_journals_source" {
			return Journal{}, ErrSourceAlreadyPosted
		}
		return Journal{}, shared.StoreError("accounting: insert journal", err)
	}
	return header, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, journalID int64, lines []PostingLineInput) ([]JournalLine, error) {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (journal_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, journalID, line.AccountID, shared.Numeric(line.Debit), shared.Numeric(line.Credit), line.Description)
	}
	results := r.tx.SendBatch(ctx, batch)
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			_ = results.Close()
			return nil, shared.StoreError("accounting: insert journal line", err)
		}
		out = append(out, JournalLine{
			ID:          id,
			JournalID:   journalID,
			AccountID:   line.AccountID,
			Debit:       shared.Round2(line.Debit),
			Credit:      shared.Round2(line.Credit),
			Description: line.Description,
		})
	}
	if err := results.Close(); err != nil {
		return nil, shared.StoreError("accounting: insert journal lines", err)
	}
	return out, nil
}

const journalColumns = `id, company_id, journal_date, source, source_id, source_key, reference, memo, created_at`

func (r *txRepository) GetJournalWithLines(ctx context.Context, companyID, journalID int64) (Journal, error) {
	return r.loadJournal(ctx, `SELECT `+journalColumns+` FROM journals WHERE company_id=$1 AND id=$2`, companyID, journalID)
}

func (r *txRepository) GetJournalBySourceKey(ctx context.Context, companyID int64, key uuid.UUID) (Journal, error) {
	return r.loadJournal(ctx, `SELECT `+journalColumns+` FROM journals WHERE company_id=$1 AND source_key=$2`, companyID, key)
}

func (r *txRepository) loadJournal(ctx context.Context, query string, args ...any) (Journal, error) {
	var j Journal
	err := r.tx.QueryRow(ctx, query, args...).
		Scan(&j.ID, &j.CompanyID, &j.Date, &j.Source, &j.SourceID, &j.SourceKey, &j.Reference, &j.Memo, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrJournalNotFound
		}
		return Journal{}, shared.StoreError("accounting: get journal", err)
	}
	rows, err := r.tx.Query(ctx, `SELECT id, journal_id, account_id, debit::float8, credit::float8, description
FROM journal_lines WHERE journal_id=$1 ORDER BY id ASC`, j.ID)
	if err != nil {
		return Journal{}, shared.StoreError("accounting: get journal lines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.Description); err != nil {
			return Journal{}, shared.StoreError("accounting: scan journal line", err)
		}
		j.Lines = append(j.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Journal{}, shared.StoreError("accounting: get journal lines", err)
	}
	return j, nil
}

func nullString(val string) any {
	if val == "" {
		return nil
	}
	return val
}
