package shared

import "github.com/shopspring/decimal"

// BalanceTolerance absorbs rounding when comparing debit and credit totals.
var BalanceTolerance = decimal.RequireFromString("0.01")

// Round2 rounds a currency amount half away from zero to cents.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SumMoney adds currency amounts without accumulating binary float drift.
func SumMoney(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}

// SubMoney returns a - b rounded to cents.
func SubMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// WithinTolerance reports whether |a-b| <= BalanceTolerance.
func WithinTolerance(a, b float64) bool {
	diff := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	return diff.LessThanOrEqual(BalanceTolerance)
}

// Numeric formats an amount for NUMERIC(18,2) columns.
func Numeric(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
