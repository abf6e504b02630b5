package service

import (
	"context"
	"fmt"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultEventPage = 100
	maxEventPage     = 1000
	verifyPage       = 500
)

// appendToJournal seals event onto the current head and stores it inside tx.
func appendToJournal(ctx context.Context, repo ports.EventRepository, tx pgx.Tx, event *domain.Event) error {
	prev, err := repo.LastHash(ctx, tx)
	if err != nil {
		return fmt.Errorf("read journal head: %w", err)
	}
	event.Seal(prev)
	if err := repo.Append(ctx, tx, event); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// JournalServiceImpl implements ports.JournalService.
type JournalServiceImpl struct {
	events ports.EventRepository
	log    zerolog.Logger
}

// NewJournalService creates a new JournalServiceImpl.
func NewJournalService(events ports.EventRepository, log zerolog.Logger) *JournalServiceImpl {
	return &JournalServiceImpl{events: events, log: log}
}

// List returns journal records matching params, ascending by Seq.
func (s *JournalServiceImpl) List(ctx context.Context, params ports.EventListParams) ([]domain.Event, error) {
	if params.Filter.Kind != "" && !params.Filter.Kind.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown event kind %q", params.Filter.Kind))
	}
	if params.AfterSeq < 0 {
		return nil, apperror.Validation("after must be non-negative")
	}
	switch {
	case params.Limit <= 0:
		params.Limit = defaultEventPage
	case params.Limit > maxEventPage:
		params.Limit = maxEventPage
	}

	events, err := s.events.List(ctx, params)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}

// Verify walks the whole journal and checks every link of the hash chain.
func (s *JournalServiceImpl) Verify(ctx context.Context) (*ports.ChainReport, error) {
	report := &ports.ChainReport{Valid: true, HeadHash: domain.GenesisHash}

	for {
		page, err := s.events.List(ctx, ports.EventListParams{AfterSeq: report.HeadSeq, Limit: verifyPage})
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("list events: %w", err))
		}
		if len(page) == 0 {
			break
		}

		if err := domain.VerifyChain(page, report.HeadHash); err != nil {
			report.Valid = false
			report.Error = err.Error()
			s.log.Error().Err(err).Int64("after_seq", report.HeadSeq).Msg("journal verification failed")
			return report, nil
		}

		last := page[len(page)-1]
		report.Records += int64(len(page))
		report.HeadSeq = last.Seq
		report.HeadHash = last.Hash

		if len(page) < verifyPage {
			break
		}
	}

	return report, nil
}
