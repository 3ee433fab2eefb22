package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached reports derived from a company's ledger.
type Invalidator interface {
	Bump(ctx context.Context, companyID int64) error
}

// Service is the ledger of record: it owns the chart of accounts and posts
// balanced journals.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the ledger service. audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and persists a new journal with all of its lines atomically.
func (s *Service) Post(ctx context.Context, input PostingInput) (Journal, error) {
	if err := input.Validate(); err != nil {
		return Journal{}, err
	}
	input = input.roundedToCents()
	header := Journal{
		CompanyID: input.CompanyID,
		Date:      truncateDay(input.Date),
		Source:    input.Source,
		SourceID:  input.SourceID,
		SourceKey: sourceKey(input.CompanyID, input.Source, input.SourceID),
		Reference: input.Reference,
		Memo:      input.Memo,
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids := input.accountIDs()
		owned, err := tx.CountOwnedAccounts(ctx, input.CompanyID, ids)
		if err != nil {
			return err
		}
		if owned != len(ids) {
			return ErrForeignAccount
		}
		inserted, err := tx.InsertJournal(ctx, header)
		if err != nil {
			return err
		}
		lines, err := tx.InsertJournalLines(ctx, inserted.ID, input.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		journal = inserted
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	s.afterPost(ctx, journal)
	return journal, nil
}

// postIdempotent posts an event-sourced journal; when the source was already
// posted it returns the existing journal instead of failing.
func (s *Service) postIdempotent(ctx context.Context, input PostingInput) (Journal, error) {
	journal, err := s.Post(ctx, input)
	if !errors.Is(err, ErrSourceAlreadyPosted) {
		return journal, err
	}
	key := sourceKey(input.CompanyID, input.Source, input.SourceID)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		journal, err = tx.GetJournalBySourceKey(ctx, input.CompanyID, key)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.logger.Info("journal already posted for source",
		slog.Int64("company_id", input.CompanyID),
		slog.String("source", string(input.Source)),
		slog.Int64("source_id", input.SourceID),
		slog.Int64("journal_id", journal.ID),
	)
	return journal, nil
}

func (s *Service) afterPost(ctx context.Context, journal Journal) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx, journal.CompanyID); err != nil {
			s.logger.Warn("report cache bump failed", slog.Int64("company_id", journal.CompanyID), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: journal.CompanyID,
			Action:    "journal.post",
			Entity:    "journal",
			EntityID:  fmt.Sprintf("%d", journal.ID),
			Meta: map[string]any{
				"source":    journal.Source,
				"source_id": journal.SourceID,
				"lines":     len(journal.Lines),
			},
			At: s.now(),
		})
		if err != nil {
			s.logger.Warn("audit journal post", slog.Int64("journal_id", journal.ID), slog.Any("error", err))
		}
	}
}

// Reverse posts a journal that mirrors the original with debits and credits swapped.
// A journal can be reversed once.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (Journal, error) {
	if input.JournalID <= 0 {
		return Journal{}, shared.Validation("accounting: journal id required")
	}
	original, err := s.GetJournal(ctx, input.CompanyID, input.JournalID)
	if err != nil {
		return Journal{}, err
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	if date.Before(original.Date) {
		return Journal{}, shared.Validation("accounting: reversal cannot predate the original journal")
	}
	memo := input.Memo
	if memo == "" {
		memo = fmt.Sprintf("Reversal of journal %d", original.ID)
	}
	return s.Post(ctx, PostingInput{
		CompanyID: input.CompanyID,
		Date:      date,
		Source:    SourceReversal,
		SourceID:  original.ID,
		Reference: original.Reference,
		Memo:      memo,
		Lines:     reverseLines(original.Lines),
	})
}

// GetJournal loads a journal with its lines.
func (s *Service) GetJournal(ctx context.Context, companyID, journalID int64) (Journal, error) {
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		journal, err = tx.GetJournalWithLines(ctx, companyID, journalID)
		return err
	})
	return journal, err
}

func reverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
