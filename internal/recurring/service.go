package recurring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/billing"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrProfileAdvanced is returned when another run advanced the profile first.
var ErrProfileAdvanced = errors.New("recurring: profile already advanced")

// ErrProfileNotFound is returned for unknown profiles.
var ErrProfileNotFound = shared.NewError(shared.ErrNotFound, "recurring: profile not found")

// Profile is a recurring invoice template.
type Profile struct {
	ID          int64              `json:"id"`
	CompanyID   int64              `json:"companyId"`
	ClientID    int64              `json:"clientId"`
	Interval    Interval           `json:"interval"`
	StartDate   time.Time          `json:"startDate"`
	NextRunDate time.Time          `json:"nextRunDate"`
	EndDate     *time.Time         `json:"endDate,omitempty"`
	LineItems   []billing.LineItem `json:"lineItems"`
	TaxRate     float64            `json:"taxRate"`
	Active      bool               `json:"active"`
	LastRunAt   *time.Time         `json:"lastRunAt,omitempty"`
}

// ProfileInput creates a profile.
type ProfileInput struct {
	CompanyID int64              `validate:"required"`
	ClientID  int64              `validate:"required"`
	Interval  Interval           `validate:"required"`
	StartDate time.Time          `validate:"required"`
	EndDate   *time.Time
	LineItems []billing.LineItem `validate:"required,min=1,dive"`
	TaxRate   float64            `validate:"gte=0,lte=1"`
}

// Advance moves a profile from one run date to the next.
type Advance struct {
	ProfileID int64
	From      time.Time
	To        time.Time
	Active    bool
	RanAt     time.Time
}

// Created describes one generated invoice.
type Created struct {
	ProfileID   int64                     `json:"profileId"`
	InvoiceID   int64                     `json:"invoiceId"`
	Number      string                    `json:"number"`
	Total       float64                   `json:"total"`
	NextRunDate time.Time                 `json:"nextRunDate"`
	Active      bool                      `json:"active"`
	Posting     accounting.PostingOutcome `json:"posting"`
}

// Failure records a profile that could not be processed.
type Failure struct {
	ProfileID int64  `json:"profileId"`
	Error     string `json:"error"`
}

// Result summarises a processing run.
type Result struct {
	Processed       int       `json:"processed"`
	Skipped         int       `json:"skipped"`
	InvoicesCreated []Created `json:"invoicesCreated"`
	Failed          []Failure `json:"failed"`
}

// Repository loads and advances profiles.
type Repository interface {
	DueProfiles(ctx context.Context, companyID int64, today time.Time) ([]Profile, error)
	ListProfiles(ctx context.Context, companyID int64) ([]Profile, error)
	ClientBelongs(ctx context.Context, companyID, clientID int64) (bool, error)
	InsertProfile(ctx context.Context, p Profile) (Profile, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository writes the generated invoice and advances the profile atomically.
type TxRepository interface {
	billing.TxRepository
	// AdvanceProfile moves next_run_date only if it still equals adv.From.
	AdvanceProfile(ctx context.Context, adv Advance) (bool, error)
}

// Service generates invoices from due recurring profiles.
type Service struct {
	repo   Repository
	ledger accounting.InvoicePoster
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the scheduler. ledger may be nil to skip posting.
func NewService(repo Repository, ledger accounting.InvoicePoster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateProfile validates and stores a new profile. The first run is on the start date.
func (s *Service) CreateProfile(ctx context.Context, input ProfileInput) (Profile, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Profile{}, err
	}
	if !input.Interval.Valid() {
		return Profile{}, shared.Validation("recurring: unknown interval %q", string(input.Interval))
	}
	start := truncateDay(input.StartDate)
	if input.EndDate != nil && input.EndDate.Before(start) {
		return Profile{}, shared.Validation("recurring: end date before start date")
	}
	ok, err := s.repo.ClientBelongs(ctx, input.CompanyID, input.ClientID)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, billing.ErrClientNotFound
	}
	return s.repo.InsertProfile(ctx, Profile{
		CompanyID:   input.CompanyID,
		ClientID:    input.ClientID,
		Interval:    input.Interval,
		StartDate:   start,
		NextRunDate: start,
		EndDate:     input.EndDate,
		LineItems:   input.LineItems,
		TaxRate:     input.TaxRate,
		Active:      true,
	})
}

// ListProfiles returns the company's profiles.
func (s *Service) ListProfiles(ctx context.Context, companyID int64) ([]Profile, error) {
	return s.repo.ListProfiles(ctx, companyID)
}

// ProcessDueProfiles fires every due profile once. companyID 0 processes all
// companies. A failing profile is recorded and does not stop the run; overdue
// profiles catch up on later runs.
func (s *Service) ProcessDueProfiles(ctx context.Context, companyID int64) (Result, error) {
	now := s.now()
	today := truncateDay(now)
	profiles, err := s.repo.DueProfiles(ctx, companyID, today)
	if err != nil {
		return Result{}, err
	}
	result := Result{InvoicesCreated: []Created{}, Failed: []Failure{}}
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		created, err := s.fire(ctx, p, now)
		if errors.Is(err, ErrProfileAdvanced) {
			s.logger.Info("recurring profile skipped", slog.Int64("profile_id", p.ID))
			result.Skipped++
			continue
		}
		result.Processed++
		if err != nil {
			s.logger.Error("recurring profile failed", slog.Int64("profile_id", p.ID), slog.Int64("company_id", p.CompanyID), slog.Any("error", err))
			result.Failed = append(result.Failed, Failure{ProfileID: p.ID, Error: shared.UserSafeMessage(err)})
			continue
		}
		result.InvoicesCreated = append(result.InvoicesCreated, created)
	}
	s.logger.Info("recurring run complete",
		slog.Int64("company_id", companyID),
		slog.Int("processed", result.Processed),
		slog.Int("skipped", result.Skipped),
		slog.Int("created", len(result.InvoicesCreated)),
		slog.Int("failed", len(result.Failed)))
	return result, nil
}

func (s *Service) fire(ctx context.Context, p Profile, now time.Time) (Created, error) {
	if len(p.LineItems) == 0 {
		return Created{}, shared.Validation("recurring: profile %d has no line items", p.ID)
	}
	runDate := truncateDay(p.NextRunDate)
	next, err := p.Interval.Next(truncateDay(p.StartDate), runDate)
	if err != nil {
		return Created{}, err
	}
	active := p.EndDate == nil || !next.After(truncateDay(*p.EndDate))

	draft := billing.BuildInvoice(p.CompanyID, p.ClientID, runDate, p.LineItems, p.TaxRate)
	if draft.Total <= 0 {
		return Created{}, shared.Validation("recurring: profile %d totals zero", p.ID)
	}

	var inv billing.Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		moved, err := tx.AdvanceProfile(ctx, Advance{ProfileID: p.ID, From: runDate, To: next, Active: active, RanAt: now})
		if err != nil {
			return err
		}
		if !moved {
			return ErrProfileAdvanced
		}
		inv, err = tx.InsertInvoice(ctx, draft)
		return err
	})
	if err != nil {
		return Created{}, err
	}

	out := Created{
		ProfileID:   p.ID,
		InvoiceID:   inv.ID,
		Number:      inv.Number,
		Total:       inv.Total,
		NextRunDate: next,
		Active:      active,
	}
	if s.ledger != nil {
		journal, postErr := s.ledger.PostInvoice(ctx, inv.Event())
		out.Posting = accounting.Outcome(s.logger, journal, postErr,
			slog.Int64("profile_id", p.ID), slog.Int64("invoice_id", inv.ID))
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
