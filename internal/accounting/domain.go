package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Valid reports whether t is one of the five ledger categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Source identifies the business event behind a journal.
type Source string

const (
	SourceInvoice  Source = "invoice"
	SourceExpense  Source = "expense"
	SourceManual   Source = "manual"
	SourceReversal Source = "reversal"
)

// Account models a chart of accounts node.
type Account struct {
	ID          int64       `json:"id"`
	CompanyID   int64       `json:"companyId"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Type        AccountType `json:"type"`
	ParentCode  *string     `json:"parentCode,omitempty"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Journal groups the lines of a single business event. Journals are immutable;
// corrections are posted as reversing journals.
type Journal struct {
	ID        int64         `json:"id"`
	CompanyID int64         `json:"companyId"`
	Date      time.Time     `json:"journalDate"`
	Source    Source        `json:"source"`
	SourceID  int64         `json:"sourceId"`
	SourceKey uuid.UUID     `json:"sourceKey"`
	Reference string        `json:"reference"`
	Memo      string        `json:"memo"`
	CreatedAt time.Time     `json:"createdAt"`
	Lines     []JournalLine `json:"lines"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          int64   `json:"id"`
	JournalID   int64   `json:"journalId"`
	AccountID   int64   `json:"accountId"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description"`
}

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	CompanyID int64
	Date      time.Time
	Source    Source
	SourceID  int64
	Reference string
	Memo      string
	Lines     []PostingLineInput
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	CompanyID int64
	JournalID int64
	Date      time.Time
	Memo      string
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = shared.NewError(shared.ErrValidation, "accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = shared.NewError(shared.ErrValidation, "accounting: journal requires at least two lines")
	// ErrAccountNotFound indicates a code or id outside the company's chart.
	ErrAccountNotFound = shared.NewError(shared.ErrNotFound, "accounting: account not found")
	// ErrForeignAccount indicates a posting line referencing another company's or an unknown account.
	ErrForeignAccount = shared.NewError(shared.ErrValidation, "accounting: line references an account outside the company")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = shared.NewError(shared.ErrNotFound, "accounting: journal not found")
	// ErrSourceAlreadyPosted indicates idempotency conflict on (company, source, source id).
	ErrSourceAlreadyPosted = shared.NewError(shared.ErrValidation, "accounting: source already posted")
	// ErrChartMissing indicates the company has not been seeded yet.
	ErrChartMissing = shared.NewError(shared.ErrValidation, "accounting: chart of accounts not initialised")
)

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.CompanyID <= 0 {
		return shared.Validation("accounting: company required")
	}
	if in.Date.IsZero() {
		return shared.Validation("accounting: journal date required")
	}
	if in.Source == "" {
		return shared.Validation("accounting: source required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	// Checks run on cent-rounded amounts, the values NUMERIC(18,2) stores.
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID <= 0 {
			return shared.Validation("accounting: line %d missing account", idx)
		}
		dr := decimal.NewFromFloat(line.Debit).Round(2)
		cr := decimal.NewFromFloat(line.Credit).Round(2)
		if dr.IsNegative() || cr.IsNegative() {
			return shared.Validation("accounting: line %d negative amount", idx)
		}
		if dr.IsPositive() && cr.IsPositive() {
			return shared.Validation("accounting: line %d cannot be both debit and credit", idx)
		}
		if dr.IsZero() && cr.IsZero() {
			return shared.Validation("accounting: line %d has no amount", idx)
		}
		debit = debit.Add(dr)
		credit = credit.Add(cr)
	}
	if debit.Sub(credit).Abs().GreaterThan(shared.BalanceTolerance) {
		return ErrUnbalanced
	}
	return nil
}

// roundedToCents returns a copy whose line amounts are rounded to cents.
func (in PostingInput) roundedToCents() PostingInput {
	lines := make([]PostingLineInput, len(in.Lines))
	for i, line := range in.Lines {
		line.Debit = shared.Round2(line.Debit)
		line.Credit = shared.Round2(line.Credit)
		lines[i] = line
	}
	in.Lines = lines
	return in
}

// accountIDs returns the distinct accounts referenced by the input.
func (in PostingInput) accountIDs() []int64 {
	seen := make(map[int64]struct{}, len(in.Lines))
	ids := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

var sourceNamespace = uuid.MustParse("8d5c3f5e-4f6b-4c1e-9a57-3c2b8f0d6a11")

// sourceKey derives the idempotency key for event-sourced journals. Manual journals
// get a random key so that repeated manual entries are allowed.
func sourceKey(companyID int64, source Source, sourceID int64) uuid.UUID {
	if source == SourceManual || sourceID == 0 {
		return uuid.New()
	}
	return uuid.NewSHA1(sourceNamespace, []byte(fmt.Sprintf("%d:%s:%d", companyID, source, sourceID)))
}
