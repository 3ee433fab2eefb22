package fraud

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AlertType names the heuristic that raised an alert.
type AlertType string

const (
	AlertDuplicate AlertType = "duplicate"
	AlertOutlier   AlertType = "outlier"
	AlertWeekend   AlertType = "weekend"
)

// Severity grades an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Invoice is the slice of an invoice the heuristics look at.
type Invoice struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"companyId"`
	ClientID  int64     `json:"clientId"`
	Number    string    `json:"number"`
	IssueDate time.Time `json:"issueDate"`
	Total     float64   `json:"total"`
}

// Alert is a derived finding. Alerts are recomputed on every call and never stored.
type Alert struct {
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	CompanyID int64     `json:"companyId"`
	SourceIDs []int64   `json:"sourceIds"`
	Amount    float64   `json:"amount"`
	Message   string    `json:"message"`
}

// Config tunes the outlier heuristic.
type Config struct {
	// OutlierK is the number of deviations above the mean an invoice may reach.
	OutlierK float64
	// LookbackDays bounds the invoices considered for outliers.
	LookbackDays int
	// MinSamples is the number of other invoices required to judge one invoice.
	MinSamples int
}

// DefaultConfig returns k=3 over a one year window with at least five peers.
func DefaultConfig() Config {
	return Config{OutlierK: 3, LookbackDays: 365, MinSamples: 5}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.OutlierK <= 0 {
		c.OutlierK = d.OutlierK
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = d.LookbackDays
	}
	if c.MinSamples <= 0 {
		c.MinSamples = d.MinSamples
	}
	return c
}

// Detect runs the duplicate, outlier and weekend heuristics. Invoices of different
// companies never influence each other. Alerts are ordered by type, then company,
// then first source id.
func Detect(invoices []Invoice, now time.Time, cfg Config) []Alert {
	cfg = cfg.withDefaults()
	alerts := make([]Alert, 0)
	alerts = append(alerts, duplicates(invoices)...)
	alerts = append(alerts, outliers(invoices, now, cfg)...)
	alerts = append(alerts, weekends(invoices)...)
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.CompanyID != b.CompanyID {
			return a.CompanyID < b.CompanyID
		}
		return a.SourceIDs[0] < b.SourceIDs[0]
	})
	return alerts
}

type duplicateKey struct {
	company int64
	client  int64
	cents   int64
	day     string
}

func duplicates(invoices []Invoice) []Alert {
	groups := make(map[duplicateKey][]Invoice)
	var order []duplicateKey
	for _, inv := range invoices {
		key := duplicateKey{
			company: inv.CompanyID,
			client:  inv.ClientID,
			cents:   decimal.NewFromFloat(inv.Total).Shift(2).Round(0).IntPart(),
			day:     inv.IssueDate.Format(time.DateOnly),
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], inv)
	}
	var alerts []Alert
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		alerts = append(alerts, Alert{
			Type:      AlertDuplicate,
			Severity:  SeverityHigh,
			CompanyID: key.company,
			SourceIDs: ids,
			Amount:    members[0].Total,
			Message:   fmt.Sprintf("%d invoices to client %d for %.2f on %s", len(ids), key.client, members[0].Total, key.day),
		})
	}
	return alerts
}

// outliers compares each recent invoice with the other recent invoices of its
// company (leave-one-out) so the suspect does not inflate its own baseline.
func outliers(invoices []Invoice, now time.Time, cfg Config) []Alert {
	from := now.AddDate(0, 0, -cfg.LookbackDays)
	byCompany := make(map[int64][]Invoice)
	for _, inv := range invoices {
		if inv.IssueDate.Before(from) || inv.IssueDate.After(now) {
			continue
		}
		byCompany[inv.CompanyID] = append(byCompany[inv.CompanyID], inv)
	}
	var alerts []Alert
	for companyID, window := range byCompany {
		if len(window)-1 < cfg.MinSamples {
			continue
		}
		for i, inv := range window {
			others := make([]float64, 0, len(window)-1)
			for j, other := range window {
				if j != i {
					others = append(others, other.Total)
				}
			}
			mean := average(others)
			sigma := math.Max(std(others, mean), 0.1*math.Abs(mean))
			bound := mean + cfg.OutlierK*sigma
			if inv.Total <= bound {
				continue
			}
			severity := SeverityMedium
			if inv.Total > mean+2*cfg.OutlierK*sigma {
				severity = SeverityHigh
			}
			alerts = append(alerts, Alert{
				Type:      AlertOutlier,
				Severity:  severity,
				CompanyID: companyID,
				SourceIDs: []int64{inv.ID},
				Amount:    inv.Total,
				Message:   fmt.Sprintf("invoice %s amount %.2f exceeds bound %.2f (mean %.2f)", inv.Number, inv.Total, bound, mean),
			})
		}
	}
	return alerts
}

func weekends(invoices []Invoice) []Alert {
	var alerts []Alert
	for _, inv := range invoices {
		wd := inv.IssueDate.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertWeekend,
			Severity:  SeverityLow,
			CompanyID: inv.CompanyID,
			SourceIDs: []int64{inv.ID},
			Amount:    inv.Total,
			Message:   fmt.Sprintf("invoice %s issued on a %s", inv.Number, wd),
		})
	}
	return alerts
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func std(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
