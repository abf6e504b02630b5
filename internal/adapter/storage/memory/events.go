package memory

import (
	"context"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository.
type EventRepo struct {
	store *Store
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(store *Store) *EventRepo {
	return &EventRepo{store: store}
}

// LastHash takes the journal lock and returns the head hash as tx sees it.
func (r *EventRepo) LastHash(ctx context.Context, tx pgx.Tx) (string, error) {
	mt, err := asTx(tx, r.store)
	if err != nil {
		return "", err
	}
	if err := mt.lockJournal(ctx); err != nil {
		return "", err
	}

	mt.mu.Lock()
	if n := len(mt.events); n > 0 {
		defer mt.mu.Unlock()
		return mt.events[n-1].Hash, nil
	}
	mt.mu.Unlock()

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if n := len(r.store.events); n > 0 {
		return r.store.events[n-1].Hash, nil
	}
	return domain.GenesisHash, nil
}

// Append buffers event in tx and assigns the Seq it will commit with.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error {
	mt, err := asTx(tx, r.store)
	if err != nil {
		return err
	}
	if err := mt.lockJournal(ctx); err != nil {
		return err
	}

	r.store.mu.RLock()
	committed := len(r.store.events)
	r.store.mu.RUnlock()

	mt.mu.Lock()
	defer mt.mu.Unlock()
	event.Seq = int64(committed + len(mt.events) + 1)
	mt.events = append(mt.events, *event)
	return nil
}

// List returns committed events matching params, ascending by Seq.
func (r *EventRepo) List(_ context.Context, params ports.EventListParams) ([]domain.Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]domain.Event, 0)
	for i := range r.store.events {
		e := &r.store.events[i]
		if e.Seq <= params.AfterSeq || !params.Filter.Match(e) {
			continue
		}
		out = append(out, *e)
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out, nil
}
