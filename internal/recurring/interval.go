package recurring

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Interval is the cadence of a recurring profile.
type Interval string

const (
	Weekly    Interval = "weekly"
	Biweekly  Interval = "biweekly"
	Monthly   Interval = "monthly"
	Quarterly Interval = "quarterly"
	Yearly    Interval = "yearly"
)

// Valid reports whether i is a supported cadence.
func (i Interval) Valid() bool {
	switch i {
	case Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

func (i Interval) months() int {
	switch i {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Yearly:
		return 12
	}
	return 0
}

// Next returns the run date following current. Month based intervals stay
// anchored on start's day of month, clamped to the last day of shorter months,
// so a profile started on Jan 31 runs Feb 28 then Mar 31.
func (i Interval) Next(start, current time.Time) (time.Time, error) {
	switch i {
	case Weekly:
		return current.AddDate(0, 0, 7), nil
	case Biweekly:
		return current.AddDate(0, 0, 14), nil
	case Monthly, Quarterly, Yearly:
		step := i.months()
		elapsed := monthsBetween(start, current)
		// next multiple of step strictly after current
		n := (elapsed/step + 1) * step
		next := addMonthsClamped(start, n)
		for !next.After(current) {
			n += step
			next = addMonthsClamped(start, n)
		}
		return next, nil
	}
	return time.Time{}, shared.Validation("recurring: unknown interval %q", string(i))
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func addMonthsClamped(anchor time.Time, months int) time.Time {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location()).AddDate(0, months, 0)
	day := anchor.Day()
	if last := daysIn(first.Year(), first.Month(), first.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, anchor.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
