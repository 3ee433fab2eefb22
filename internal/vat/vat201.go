package vat

import "github.com/odyssey-erp/odyssey-ledger/internal/shared"

// VAT201 holds the fields of the VAT201 return that the ledger can fill.
type VAT201 struct {
	CompanyID int64  `json:"companyId"`
	Period    Period `json:"period"`
	// Field1 standard-rated supplies, excluding VAT.
	Field1 float64 `json:"field1"`
	// Field2 zero-rated supplies.
	Field2 float64 `json:"field2"`
	// Field4 output tax on standard-rated supplies.
	Field4 float64 `json:"field4"`
	// Field13 total output tax.
	Field13 float64 `json:"field13"`
	// Field14 input tax on capital goods. Not tracked separately, always zero.
	Field14 float64 `json:"field14"`
	// Field15 other input tax.
	Field15 float64 `json:"field15"`
	// Field19 total input tax.
	Field19 float64 `json:"field19"`
	// Field20 VAT payable, or refundable when negative.
	Field20 float64 `json:"field20"`
}

// BuildVAT201 is a pure mapping of a summary onto the return.
func BuildVAT201(s Summary) VAT201 {
	form := VAT201{
		CompanyID: s.CompanyID,
		Period:    s.Period,
		Field1:    s.Raw.StandardRatedSales,
		Field2:    s.Raw.ZeroRatedSales,
		Field4:    s.OutputTax,
		Field13:   s.OutputTax,
		Field15:   s.InputTax,
	}
	form.Field19 = shared.SumMoney(form.Field14, form.Field15)
	form.Field20 = shared.SubMoney(form.Field13, form.Field19)
	return form
}

// Lines returns the form as ordered (field, label, amount) rows.
func (f VAT201) Lines() []FormLine {
	return []FormLine{
		{"1", "Standard rated supplies", f.Field1},
		{"2", "Zero rated supplies", f.Field2},
		{"4", "Output tax on standard rated supplies", f.Field4},
		{"13", "Total output tax", f.Field13},
		{"14", "Input tax on capital goods", f.Field14},
		{"15", "Other input tax", f.Field15},
		{"19", "Total input tax", f.Field19},
		{"20", "VAT payable / (refundable)", f.Field20},
	}
}

// FormLine is one printable line of the return.
type FormLine struct {
	Field  string
	Label  string
	Amount float64
}
