package vat

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const vat201Sheet = "VAT201"

// WriteVAT201XLSX renders the return as a single-sheet workbook.
func WriteVAT201XLSX(w io.Writer, form VAT201) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", vat201Sheet); err != nil {
		return fmt.Errorf("vat: rename sheet: %w", err)
	}
	f.SetCellValue(vat201Sheet, "A1", "VAT201 return")
	f.SetCellValue(vat201Sheet, "A2", "Period")
	f.SetCellValue(vat201Sheet, "B2", form.Period.Label())
	f.SetCellValue(vat201Sheet, "A4", "Field")
	f.SetCellValue(vat201Sheet, "B4", "Description")
	f.SetCellValue(vat201Sheet, "C4", "Amount")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	f.SetCellStyle(vat201Sheet, "A4", "C4", headerStyle)

	row := 5
	for _, line := range form.Lines() {
		f.SetCellValue(vat201Sheet, fmt.Sprintf("A%d", row), line.Field)
		f.SetCellValue(vat201Sheet, fmt.Sprintf("B%d", row), line.Label)
		f.SetCellValue(vat201Sheet, fmt.Sprintf("C%d", row), line.Amount)
		row++
	}
	numericStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})
	f.SetCellStyle(vat201Sheet, "C5", fmt.Sprintf("C%d", row-1), numericStyle)
	f.SetColWidth(vat201Sheet, "B", "B", 40)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("vat: write workbook: %w", err)
	}
	return nil
}
