package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LineSum aggregates the debit and credit postings of one account.
type LineSum struct {
	Debit  float64
	Credit float64
}

// TrialBalanceRow is one account of the trial balance.
type TrialBalanceRow struct {
	AccountID  int64                  `json:"accountId"`
	Code       string                 `json:"code"`
	Name       string                 `json:"name"`
	Type       accounting.AccountType `json:"type"`
	ParentCode *string                `json:"parentCode,omitempty"`
	Debit      float64                `json:"debit"`
	Credit     float64                `json:"credit"`
	Balance    float64                `json:"balance"`
}

// TrialBalance summarises every account of a company over a date range.
type TrialBalance struct {
	CompanyID   int64                              `json:"companyId"`
	Start       time.Time                          `json:"start"`
	End         time.Time                          `json:"end"`
	Accounts    []TrialBalanceRow                  `json:"accounts"`
	TotalDebit  float64                            `json:"totalDebit"`
	TotalCredit float64                            `json:"totalCredit"`
	Balanced    bool                               `json:"balanced"`
	Difference  float64                            `json:"difference"`
	ByType      map[accounting.AccountType]float64 `json:"byType"`
}

// Row returns the row for code.
func (tb TrialBalance) Row(code string) (TrialBalanceRow, bool) {
	for _, row := range tb.Accounts {
		if row.Code == code {
			return row, true
		}
	}
	return TrialBalanceRow{}, false
}

// BuildTrialBalance combines the chart with per-account sums. Accounts without
// activity are listed with zero balances.
func BuildTrialBalance(accounts []accounting.Account, sums map[int64]LineSum) TrialBalance {
	tb := TrialBalance{ByType: make(map[accounting.AccountType]float64)}
	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	byType := make(map[accounting.AccountType]decimal.Decimal)
	for _, acc := range accounts {
		sum := sums[acc.ID]
		debit := decimal.NewFromFloat(sum.Debit).Round(2)
		credit := decimal.NewFromFloat(sum.Credit).Round(2)
		balance := credit.Sub(debit)
		if acc.Type.DebitNormal() {
			balance = debit.Sub(credit)
		}
		tb.Accounts = append(tb.Accounts, TrialBalanceRow{
			AccountID:  acc.ID,
			Code:       acc.Code,
			Name:       acc.Name,
			Type:       acc.Type,
			ParentCode: acc.ParentCode,
			Debit:      debit.InexactFloat64(),
			Credit:     credit.InexactFloat64(),
			Balance:    balance.InexactFloat64(),
		})
		totalDebit = totalDebit.Add(debit)
		totalCredit = totalCredit.Add(credit)
		byType[acc.Type] = byType[acc.Type].Add(balance)
	}
	sort.Slice(tb.Accounts, func(i, j int) bool { return tb.Accounts[i].Code < tb.Accounts[j].Code })
	for t, v := range byType {
		tb.ByType[t] = v.InexactFloat64()
	}
	tb.TotalDebit = totalDebit.InexactFloat64()
	tb.TotalCredit = totalCredit.InexactFloat64()
	diff := totalDebit.Sub(totalCredit)
	tb.Balanced = diff.Abs().LessThanOrEqual(shared.BalanceTolerance)
	if !tb.Balanced {
		tb.Difference = diff.InexactFloat64()
	}
	return tb
}
