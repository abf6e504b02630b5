package memory

import (
	"context"

	"custody-vault/internal/core/domain"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

// Create stores record unless its key already exists.
func (r *IdempotencyRepo) Create(_ context.Context, record *domain.IdempotencyRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.idem[record.Key]; ok {
		return nil
	}
	cp := *record
	cp.ResponseJSON = append([]byte(nil), record.ResponseJSON...)
	r.store.idem[record.Key] = cp
	return nil
}

// Get returns the record for key, or nil.
func (r *IdempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.idem[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
