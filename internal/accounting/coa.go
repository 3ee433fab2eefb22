package accounting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Well-known account codes used by posting recipes and reports.
const (
	CodeAssets             = "1000"
	CodeCurrentAssets      = "1100"
	CodeCashBank           = "1110"
	CodeAccountsReceivable = "1200"
	CodeVATInput           = "1300"
	CodeLiabilities        = "2000"
	CodeCurrentLiabilities = "2100"
	CodeAccountsPayable    = "2110"
	CodeVATOutput          = "2200"
	CodeSalesRevenue       = "4100"
	CodeOperatingExpenses  = "5200"
)

// SeedAccount is one row of the default chart.
type SeedAccount struct {
	Code        string
	Name        string
	Type        AccountType
	Parent      string
	Description string
}

// DefaultChart is inserted for every new company, parents before children.
var DefaultChart = []SeedAccount{
	{Code: "1000", Name: "Assets", Type: AccountTypeAsset},
	{Code: "1100", Name: "Current Assets", Type: AccountTypeAsset, Parent: "1000"},
	{Code: "1110", Name: "Cash & Bank", Type: AccountTypeAsset, Parent: "1100", Description: "Operating bank accounts"},
	{Code: "1120", Name: "Petty Cash", Type: AccountTypeAsset, Parent: "1100"},
	{Code: "1200", Name: "Accounts Receivable", Type: AccountTypeAsset, Parent: "1100", Description: "Amounts owed by clients"},
	{Code: "1300", Name: "VAT Input", Type: AccountTypeAsset, Parent: "1100", Description: "VAT paid on purchases, claimable"},
	{Code: "1500", Name: "Non-current Assets", Type: AccountTypeAsset, Parent: "1000"},
	{Code: "1510", Name: "Property, Plant & Equipment", Type: AccountTypeAsset, Parent: "1500"},
	{Code: "2000", Name: "Liabilities", Type: AccountTypeLiability},
	{Code: "2100", Name: "Current Liabilities", Type: AccountTypeLiability, Parent: "2000"},
	{Code: "2110", Name: "Accounts Payable", Type: AccountTypeLiability, Parent: "2100", Description: "Amounts owed to suppliers"},
	{Code: "2200", Name: "VAT Output", Type: AccountTypeLiability, Parent: "2100", Description: "VAT charged on sales, payable"},
	{Code: "2500", Name: "Non-current Liabilities", Type: AccountTypeLiability, Parent: "2000"},
	{Code: "2510", Name: "Long-term Loans", Type: AccountTypeLiability, Parent: "2500"},
	{Code: "3000", Name: "Equity", Type: AccountTypeEquity},
	{Code: "3100", Name: "Owner's Capital", Type: AccountTypeEquity, Parent: "3000"},
	{Code: "3200", Name: "Retained Earnings", Type: AccountTypeEquity, Parent: "3000"},
	{Code: "4000", Name: "Revenue", Type: AccountTypeRevenue},
	{Code: "4100", Name: "Sales Revenue", Type: AccountTypeRevenue, Parent: "4000"},
	{Code: "4200", Name: "Other Income", Type: AccountTypeRevenue, Parent: "4000"},
	{Code: "5000", Name: "Expenses", Type: AccountTypeExpense},
	{Code: "5100", Name: "Cost of Sales", Type: AccountTypeExpense, Parent: "5000"},
	{Code: "5200", Name: "Operating Expenses", Type: AccountTypeExpense, Parent: "5000"},
	{Code: "5300", Name: "Salaries & Wages", Type: AccountTypeExpense, Parent: "5000"},
	{Code: "5400", Name: "Rent", Type: AccountTypeExpense, Parent: "5000"},
	{Code: "5500", Name: "Utilities", Type: AccountTypeExpense, Parent: "5000"},
	{Code: "5600", Name: "Bank Charges", Type: AccountTypeExpense, Parent: "5000"},
}

// InitializeChartOfAccounts seeds the default chart for a company. It locks the
// company row and upserts by code, so repeated or concurrent calls never create
// duplicates. It returns how many accounts were created.
func (s *Service) InitializeChartOfAccounts(ctx context.Context, companyID int64) (int, error) {
	if companyID <= 0 {
		return 0, shared.Validation("accounting: company required")
	}
	var created int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockCompany(ctx, companyID); err != nil {
			return err
		}
		for _, seed := range DefaultChart {
			inserted, err := tx.InsertAccountIfMissing(ctx, companyID, seed)
			if err != nil {
				return fmt.Errorf("accounting: seed %s: %w", seed.Code, err)
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("chart of accounts initialised", slog.Int64("company_id", companyID), slog.Int("created", created))
	return created, nil
}

// ResolveAccount returns the company's account with the given code.
func (s *Service) ResolveAccount(ctx context.Context, companyID int64, code string) (Account, error) {
	if code == "" {
		return Account{}, shared.Validation("accounting: account code required")
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccountByCode(ctx, companyID, code)
		return err
	})
	return account, err
}

// ListAccounts retrieves the company's chart ordered by code.
func (s *Service) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, companyID)
		return err
	})
	return accounts, err
}

// ValidateHierarchy checks that codes are unique, every parent exists in the same
// company and no ancestor chain revisits a code.
func ValidateHierarchy(accounts []Account) error {
	type node struct {
		company int64
		parent  string
	}
	byCode := make(map[string]node, len(accounts))
	for _, acc := range accounts {
		if _, dup := byCode[acc.Code]; dup {
			return shared.Validation("accounting: duplicate account code %s", acc.Code)
		}
		parent := ""
		if acc.ParentCode != nil {
			parent = *acc.ParentCode
		}
		byCode[acc.Code] = node{company: acc.CompanyID, parent: parent}
	}
	for code, n := range byCode {
		visited := map[string]bool{code: true}
		current := n
		for current.parent != "" {
			parent, ok := byCode[current.parent]
			if !ok {
				return shared.Validation("accounting: account %s references missing parent %s", code, current.parent)
			}
			if parent.company != n.company {
				return shared.Validation("accounting: account %s has parent in another company", code)
			}
			if visited[current.parent] {
				return shared.Validation("accounting: cycle detected at account %s", code)
			}
			visited[current.parent] = true
			current = parent
		}
	}
	return nil
}

// SeedAsAccounts materialises the default chart for a company without persisting it.
func SeedAsAccounts(companyID int64) []Account {
	out := make([]Account, 0, len(DefaultChart))
	for i, seed := range DefaultChart {
		acc := Account{
			ID:          int64(i + 1),
			CompanyID:   companyID,
			Code:        seed.Code,
			Name:        seed.Name,
			Type:        seed.Type,
			Description: seed.Description,
		}
		if seed.Parent != "" {
			parent := seed.Parent
			acc.ParentCode = &parent
		}
		out = append(out, acc)
	}
	return out
}
