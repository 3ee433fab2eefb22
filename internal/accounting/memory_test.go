package accounting

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// memRepo is an in-memory RepositoryPort. Each WithTx works on a copy of the
// state that is only kept when fn succeeds.
type memRepo struct {
	mu        sync.Mutex
	companies map[int64]bool
	state     memState
	failLines error
}

type memState struct {
	accounts []Account
	journals []Journal
	nextID   int64
}

func newMemRepo(companies ...int64) *memRepo {
	r := &memRepo{companies: map[int64]bool{}}
	for _, id := range companies {
		r.companies[id] = true
	}
	return r
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := memState{
		accounts: slices.Clone(r.state.accounts),
		journals: slices.Clone(r.state.journals),
		nextID:   r.state.nextID,
	}
	tx := &memTx{repo: r, state: &work}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memRepo) journalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.journals)
}

func (r *memRepo) accountCount(companyID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.state.accounts {
		if a.CompanyID == companyID {
			n++
		}
	}
	return n
}

type memTx struct {
	repo  *memRepo
	state *memState
}

func (tx *memTx) id() int64 {
	tx.state.nextID++
	return tx.state.nextID
}

func (tx *memTx) LockCompany(_ context.Context, companyID int64) error {
	if !tx.repo.companies[companyID] {
		return shared.ErrCompanyNotFound
	}
	return nil
}

func (tx *memTx) InsertAccountIfMissing(_ context.Context, companyID int64, seed SeedAccount) (bool, error) {
	for _, a := range tx.state.accounts {
		if a.CompanyID == companyID && a.Code == seed.Code {
			return false, nil
		}
	}
	acc := Account{ID: tx.id(), CompanyID: companyID, Code: seed.Code, Name: seed.Name, Type: seed.Type, Description: seed.Description, CreatedAt: time.Now()}
	if seed.Parent != "" {
		parent := seed.Parent
		acc.ParentCode = &parent
	}
	tx.state.accounts = append(tx.state.accounts, acc)
	return true, nil
}

func (tx *memTx) GetAccountByCode(_ context.Context, companyID int64, code string) (Account, error) {
	for _, a := range tx.state.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (tx *memTx) GetAccountsByCodes(_ context.Context, companyID int64, codes []string) (map[string]Account, error) {
	out := map[string]Account{}
	for _, a := range tx.state.accounts {
		if a.CompanyID == companyID && slices.Contains(codes, a.Code) {
			out[a.Code] = a
		}
	}
	return out, nil
}

func (tx *memTx) ListAccounts(_ context.Context, companyID int64) ([]Account, error) {
	var out []Account
	for _, a := range tx.state.accounts {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b Account) int {
		if a.Code < b.Code {
			return -1
		}
		if a.Code > b.Code {
			return 1
		}
		return 0
	})
	return out, nil
}

func (tx *memTx) CountOwnedAccounts(_ context.Context, companyID int64, ids []int64) (int, error) {
	n := 0
	for _, a := range tx.state.accounts {
		if a.CompanyID == companyID && slices.Contains(ids, a.ID) {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) InsertJournal(_ context.Context, header Journal) (Journal, error) {
	for _, j := range tx.state.journals {
		if j.CompanyID == header.CompanyID && j.SourceKey == header.SourceKey {
			return Journal{}, ErrSourceAlreadyPosted
		}
	}
	header.ID = tx.id()
	header.CreatedAt = time.Now()
	tx.state.journals = append(tx.state.journals, header)
	return header, nil
}

func (tx *memTx) InsertJournalLines(_ context.Context, journalID int64, lines []PostingLineInput) ([]JournalLine, error) {
	if tx.repo.failLines != nil {
		return nil, tx.repo.failLines
	}
	out := make([]JournalLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, JournalLine{ID: tx.id(), JournalID: journalID, AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Description: l.Description})
	}
	for i := range tx.state.journals {
		if tx.state.journals[i].ID == journalID {
			tx.state.journals[i].Lines = out
		}
	}
	return out, nil
}

func (tx *memTx) GetJournalWithLines(_ context.Context, companyID, journalID int64) (Journal, error) {
	for _, j := range tx.state.journals {
		if j.CompanyID == companyID && j.ID == journalID {
			return j, nil
		}
	}
	return Journal{}, ErrJournalNotFound
}

func (tx *memTx) GetJournalBySourceKey(_ context.Context, companyID int64, key uuid.UUID) (Journal, error) {
	for _, j := range tx.state.journals {
		if j.CompanyID == companyID && j.SourceKey == key {
			return j, nil
		}
	}
	return Journal{}, ErrJournalNotFound
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type countingCache struct {
	mu    sync.Mutex
	bumps map[int64]int
}

func (c *countingCache) Bump(_ context.Context, companyID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bumps == nil {
		c.bumps = map[int64]int{}
	}
	c.bumps[companyID]++
	return nil
}

func (c *countingCache) count(companyID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bumps[companyID]
}
