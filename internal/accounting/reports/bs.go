package reports

import (
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    float64               `json:"total"`
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	CurrentAssets             float64             `json:"currentAssets"`
	CurrentLiabilities        float64             `json:"currentLiabilities"`
	TotalLiabilitiesAndEquity float64             `json:"totalLiabilitiesAndEquity"`
}

// CurrentRatio returns current assets over current liabilities, false when
// there are no current liabilities.
func (b BalanceSheet) CurrentRatio() (float64, bool) {
	if b.CurrentLiabilities <= 0 {
		return 0, false
	}
	return b.CurrentAssets / b.CurrentLiabilities, true
}

// BuildBalanceSheet aggregates cumulative balances into assets, liabilities, and
// equity sections. Current items are the descendants of 1100 and 2100.
func BuildBalanceSheet(tb TrialBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets"}
	liabilities := BalanceSheetSection{Label: "Liabilities"}
	equity := BalanceSheetSection{Label: "Equity"}
	parents := make(map[string]string, len(tb.Accounts))
	for _, row := range tb.Accounts {
		if row.ParentCode != nil {
			parents[row.Code] = *row.ParentCode
		}
	}
	var assetAmounts, liabilityAmounts, equityAmounts, currentAssets, currentLiabilities []float64

	for _, row := range tb.Accounts {
		if row.Debit == 0 && row.Credit == 0 {
			continue
		}
		item := BalanceSheetAccount{Code: row.Code, Name: row.Name, Balance: row.Balance}
		switch row.Type {
		case accounting.AccountTypeAsset:
			assets.Accounts = append(assets.Accounts, item)
			assetAmounts = append(assetAmounts, item.Balance)
			if descendsFrom(parents, row.Code, accounting.CodeCurrentAssets) {
				currentAssets = append(currentAssets, item.Balance)
			}
		case accounting.AccountTypeLiability:
			liabilities.Accounts = append(liabilities.Accounts, item)
			liabilityAmounts = append(liabilityAmounts, item.Balance)
			if descendsFrom(parents, row.Code, accounting.CodeCurrentLiabilities) {
				currentLiabilities = append(currentLiabilities, item.Balance)
			}
		case accounting.AccountTypeEquity:
			equity.Accounts = append(equity.Accounts, item)
			equityAmounts = append(equityAmounts, item.Balance)
		}
	}
	assets.Total = shared.SumMoney(assetAmounts...)
	liabilities.Total = shared.SumMoney(liabilityAmounts...)
	equity.Total = shared.SumMoney(equityAmounts...)

	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		CurrentAssets:             shared.SumMoney(currentAssets...),
		CurrentLiabilities:        shared.SumMoney(currentLiabilities...),
		TotalLiabilitiesAndEquity: shared.SumMoney(liabilities.Total, equity.Total),
	}
}

func descendsFrom(parents map[string]string, code, ancestor string) bool {
	seen := map[string]bool{}
	for current := code; current != "" && !seen[current]; current = parents[current] {
		if current == ancestor {
			return true
		}
		seen[current] = true
	}
	return false
}
