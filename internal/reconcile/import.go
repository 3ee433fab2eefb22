package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// StatementHeaders is the expected first row of an imported statement.
var StatementHeaders = []string{"Date", "Description", "Reference", "Amount"}

// RowError explains why a statement row was skipped.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult reports the outcome of a statement import.
type ImportResult struct {
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}

// ImportStatement loads the first sheet of an XLSX bank statement into the
// company's open transactions. Invalid rows are reported and skipped.
func (s *Service) ImportStatement(ctx context.Context, companyID int64, r io.Reader) (ImportResult, error) {
	txns, rowErrs, err := ParseStatement(r)
	if err != nil {
		return ImportResult{}, err
	}
	n, err := s.repo.InsertTransactions(ctx, companyID, txns)
	if err != nil {
		return ImportResult{}, err
	}
	s.logger.Info("bank statement imported", slog.Int64("company_id", companyID), slog.Int("imported", n), slog.Int("skipped", len(rowErrs)))
	return ImportResult{Imported: n, Skipped: len(rowErrs), Errors: rowErrs}, nil
}

// ParseStatement reads Date | Description | Reference | Amount rows.
func ParseStatement(r io.Reader) ([]BankTransaction, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, shared.Validation("reconcile: unreadable workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, shared.Validation("reconcile: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, shared.Validation("reconcile: read rows: %v", err)
	}
	if len(rows) < 2 {
		return nil, nil, shared.Validation("reconcile: statement needs a header row and at least one line")
	}
	for i, want := range StatementHeaders {
		if !strings.EqualFold(strings.TrimSpace(cell(rows[0], i)), want) {
			return nil, nil, shared.Validation("reconcile: column %d must be %q", i+1, want)
		}
	}

	var (
		txns    []BankTransaction
		rowErrs []RowError
	)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		date, err := parseDate(cell(row, 0))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		amount, err := parseAmount(cell(row, 3))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		txns = append(txns, BankTransaction{
			Date:        date,
			Description: strings.TrimSpace(cell(row, 1)),
			Reference:   strings.TrimSpace(cell(row, 2)),
			Amount:      amount,
		})
	}
	return txns, rowErrs, nil
}

func cell(row []string, index int) string {
	if index < len(row) {
		return row[index]
	}
	return ""
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"01-02-06",
	"02 Jan 2006",
	"Jan 02, 2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q", s)
}

func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + strings.Trim(s, "()")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsZero() {
		return 0, fmt.Errorf("zero amount")
	}
	return d.Round(2).InexactFloat64(), nil
}
