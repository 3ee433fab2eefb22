package reports

import (
	"context"
	"time"
)

// Integrity is the result of a full ledger consistency check.
type Integrity struct {
	CompanyID          int64     `json:"companyId"`
	AsOf               time.Time `json:"asOf"`
	Balanced           bool      `json:"balanced"`
	Difference         float64   `json:"difference"`
	UnbalancedJournals []int64   `json:"unbalancedJournals"`
}

// OK reports whether no violation was found.
func (i Integrity) OK() bool {
	return i.Balanced && len(i.UnbalancedJournals) == 0
}

// CheckIntegrity recomputes the cumulative trial balance up to asOf, bypassing
// the cache, and lists journals that do not balance on their own.
func (s *Service) CheckIntegrity(ctx context.Context, companyID int64, asOf time.Time) (Integrity, error) {
	tb, err := s.buildTrialBalance(ctx, companyID, ledgerEpoch, asOf)
	if err != nil {
		return Integrity{}, err
	}
	ids, err := s.repo.UnbalancedJournals(ctx, companyID)
	if err != nil {
		return Integrity{}, err
	}
	return Integrity{
		CompanyID:          companyID,
		AsOf:               asOf,
		Balanced:           tb.Balanced,
		Difference:         tb.Difference,
		UnbalancedJournals: ids,
	}, nil
}
