package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pillar names.
const (
	PillarLiquidity     = "liquidity"
	PillarProfitability = "profitability"
	PillarGrowth        = "growth"
	PillarCollections   = "collections"
	PillarCompliance    = "compliance"
)

// NeutralScore is assigned to pillars without usable data.
const NeutralScore = 50.0

// Weights of each pillar in the total score. They sum to 1.
var Weights = map[string]float64{
	PillarLiquidity:     0.25,
	PillarProfitability: 0.20,
	PillarGrowth:        0.15,
	PillarCollections:   0.20,
	PillarCompliance:    0.20,
}

var pillarOrder = []string{PillarLiquidity, PillarProfitability, PillarGrowth, PillarCollections, PillarCompliance}

// Rating bands the total score.
type Rating string

const (
	RatingExcellent Rating = "excellent"
	RatingGood      Rating = "good"
	RatingFair      Rating = "fair"
	RatingPoor      Rating = "poor"
)

// RatingFor maps a total score to its band.
func RatingFor(score float64) Rating {
	switch {
	case score >= 80:
		return RatingExcellent
	case score >= 60:
		return RatingGood
	case score >= 40:
		return RatingFair
	default:
		return RatingPoor
	}
}

// Pillar is one weighted component of the health score.
type Pillar struct {
	Name    string             `json:"name"`
	Weight  float64            `json:"weight"`
	Score   float64            `json:"score"`
	Neutral bool               `json:"neutral"`
	Metrics map[string]float64 `json:"metrics"`
}

// HealthScore is recomputed on every request and never stored.
type HealthScore struct {
	CompanyID  int64     `json:"companyId"`
	AsOf       time.Time `json:"asOf"`
	TotalScore float64   `json:"totalScore"`
	Rating     Rating    `json:"rating"`
	Pillars    []Pillar  `json:"pillars"`
}

// Pillar returns the named pillar.
func (h HealthScore) Pillar(name string) (Pillar, bool) {
	for _, p := range h.Pillars {
		if p.Name == name {
			return p, true
		}
	}
	return Pillar{}, false
}

// Inputs are the raw figures a health score is computed from. A nil pointer
// means the figure is unavailable.
type Inputs struct {
	CurrentRatio      *float64
	NetMargin         *float64
	RevenueCurrent    *float64
	RevenuePrevious   *float64
	Receivables       *float64
	BankTotal         *int
	BankUnreconciled  *int
	AlertPenalty      *float64
	AlertCount        int
	CollectionsWindow int
}

// Compute scores inputs into a HealthScore.
func Compute(companyID int64, asOf time.Time, in Inputs) HealthScore {
	pillars := map[string]Pillar{
		PillarLiquidity:     liquidity(in),
		PillarProfitability: profitability(in),
		PillarGrowth:        growth(in),
		PillarCollections:   collections(in),
		PillarCompliance:    compliance(in),
	}
	total := decimal.Zero
	out := make([]Pillar, 0, len(pillarOrder))
	for _, name := range pillarOrder {
		p := pillars[name]
		p.Name = name
		p.Weight = Weights[name]
		p.Score = clamp(p.Score)
		if p.Metrics == nil {
			p.Metrics = map[string]float64{}
		}
		total = total.Add(decimal.NewFromFloat(p.Weight).Mul(decimal.NewFromFloat(p.Score)))
		out = append(out, p)
	}
	score := clamp(total.Round(1).InexactFloat64())
	return HealthScore{
		CompanyID:  companyID,
		AsOf:       asOf,
		TotalScore: score,
		Rating:     RatingFor(score),
		Pillars:    out,
	}
}

func neutral() Pillar {
	return Pillar{Score: NeutralScore, Neutral: true}
}

// linear maps v from [lo, hi] onto [0, 100].
func linear(v, lo, hi float64) float64 {
	return clamp((v - lo) / (hi - lo) * 100)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// liquidity: current ratio 0 scores 0, 2.0 or more scores 100.
func liquidity(in Inputs) Pillar {
	if in.CurrentRatio == nil {
		return neutral()
	}
	return Pillar{
		Score:   linear(*in.CurrentRatio, 0, 2),
		Metrics: map[string]float64{"currentRatio": round(*in.CurrentRatio, 4)},
	}
}

// profitability: net margin of -20% scores 0, +20% scores 100.
func profitability(in Inputs) Pillar {
	if in.NetMargin == nil {
		return neutral()
	}
	return Pillar{
		Score:   linear(*in.NetMargin, -0.2, 0.2),
		Metrics: map[string]float64{"netMargin": round(*in.NetMargin, 4)},
	}
}

// growth: revenue change of -50% scores 0, +50% scores 100.
func growth(in Inputs) Pillar {
	if in.RevenueCurrent == nil || in.RevenuePrevious == nil || *in.RevenuePrevious <= 0 {
		return neutral()
	}
	rate := (*in.RevenueCurrent - *in.RevenuePrevious) / *in.RevenuePrevious
	return Pillar{
		Score: linear(rate, -0.5, 0.5),
		Metrics: map[string]float64{
			"revenueGrowth":   round(rate, 4),
			"revenueCurrent":  *in.RevenueCurrent,
			"revenuePrevious": *in.RevenuePrevious,
		},
	}
}

// collections: DSO of 30 days or less scores 100, 120 days or more scores 0.
func collections(in Inputs) Pillar {
	if in.Receivables == nil || in.RevenueCurrent == nil || *in.RevenueCurrent <= 0 || in.CollectionsWindow <= 0 {
		return neutral()
	}
	dso := *in.Receivables / *in.RevenueCurrent * float64(in.CollectionsWindow)
	return Pillar{
		Score:   100 - linear(dso, 30, 120),
		Metrics: map[string]float64{"dso": round(dso, 1), "receivables": *in.Receivables},
	}
}

// compliance: share of reconciled bank lines, less a penalty per fraud alert.
// Without bank activity the pillar is neutral.
func compliance(in Inputs) Pillar {
	if in.BankTotal == nil || in.BankUnreconciled == nil || *in.BankTotal == 0 {
		return neutral()
	}
	ratio := float64(*in.BankUnreconciled) / float64(*in.BankTotal)
	score := (1 - ratio) * 100
	metrics := map[string]float64{"unreconciledRatio": round(ratio, 4)}
	if in.AlertPenalty != nil {
		score -= *in.AlertPenalty
		metrics["fraudAlerts"] = float64(in.AlertCount)
	}
	return Pillar{Score: clamp(score), Metrics: metrics}
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
