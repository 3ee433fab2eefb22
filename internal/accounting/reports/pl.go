package reports

import (
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ProfitAndLossAccount represents a revenue or expense account summary.
type ProfitAndLossAccount struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label    string                 `json:"label"`
	Accounts []ProfitAndLossAccount `json:"accounts"`
	Total    float64                `json:"total"`
}

// ProfitAndLoss contains the structured output for the report.
type ProfitAndLoss struct {
	Revenue   ProfitAndLossSection `json:"revenue"`
	Expense   ProfitAndLossSection `json:"expense"`
	NetIncome float64              `json:"netIncome"`
}

// NetMargin returns net income over revenue, false when there is no revenue.
func (p ProfitAndLoss) NetMargin() (float64, bool) {
	if p.Revenue.Total <= 0 {
		return 0, false
	}
	return p.NetIncome / p.Revenue.Total, true
}

// BuildProfitAndLoss aggregates trial balance rows into revenue and expense sections.
func BuildProfitAndLoss(tb TrialBalance) ProfitAndLoss {
	revenue := ProfitAndLossSection{Label: "Revenue"}
	expense := ProfitAndLossSection{Label: "Expense"}
	var revenueAmounts, expenseAmounts []float64

	for _, row := range tb.Accounts {
		if row.Debit == 0 && row.Credit == 0 {
			continue
		}
		item := ProfitAndLossAccount{Code: row.Code, Name: row.Name, Amount: row.Balance}
		switch row.Type {
		case accounting.AccountTypeRevenue:
			revenue.Accounts = append(revenue.Accounts, item)
			revenueAmounts = append(revenueAmounts, item.Amount)
		case accounting.AccountTypeExpense:
			expense.Accounts = append(expense.Accounts, item)
			expenseAmounts = append(expenseAmounts, item.Amount)
		}
	}
	revenue.Total = shared.SumMoney(revenueAmounts...)
	expense.Total = shared.SumMoney(expenseAmounts...)

	return ProfitAndLoss{
		Revenue:   revenue,
		Expense:   expense,
		NetIncome: shared.SubMoney(revenue.Total, expense.Total),
	}
}
