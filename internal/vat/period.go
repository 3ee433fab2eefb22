package vat

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// DefaultPeriodMonths is the bimonthly filing cycle.
const DefaultPeriodMonths = 2

// Period is a filing window; End is the last day of the window, inclusive.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Label renders the period as "2025-03/2025-04".
func (p Period) Label() string {
	first, last := p.Start.Format("2006-01"), p.End.Format("2006-01")
	if first == last {
		return first
	}
	return first + "/" + last
}

// normaliseMonths falls back to the bimonthly cycle when months does not divide a year.
func normaliseMonths(months int) int {
	switch months {
	case 1, 2, 3, 4, 6, 12:
		return months
	default:
		return DefaultPeriodMonths
	}
}

// PeriodFor returns the filing period containing the given month.
func PeriodFor(year int, month time.Month, months int) Period {
	months = normaliseMonths(months)
	first := time.Month((int(month)-1)/months*months + 1)
	start := time.Date(year, first, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, months, -1)
	return Period{Start: start, End: end}
}

// CurrentPeriod returns the filing period containing now.
func CurrentPeriod(now time.Time, months int) Period {
	return PeriodFor(now.Year(), now.Month(), months)
}

// PreviousPeriod returns the filing period before p.
func PreviousPeriod(p Period, months int) Period {
	prev := p.Start.AddDate(0, 0, -1)
	return PeriodFor(prev.Year(), prev.Month(), months)
}

// ParsePeriod accepts "current" (or empty), "previous" or a "YYYY-MM" month.
func ParsePeriod(value string, now time.Time, months int) (Period, error) {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "", "current":
		return CurrentPeriod(now, months), nil
	case "previous":
		return PreviousPeriod(CurrentPeriod(now, months), months), nil
	default:
		month, err := time.Parse("2006-01", v)
		if err != nil {
			return Period{}, shared.Validation("vat: invalid period %q", value)
		}
		return PeriodFor(month.Year(), month.Month(), months), nil
	}
}

func (p Period) String() string {
	return fmt.Sprintf("%s..%s", p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly))
}
