package memory

import (
	"context"

	"custody-vault/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

// Create appends an audit entry.
func (r *AuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, *log)
	return nil
}

// All returns a copy of every audit entry in insertion order.
func (r *AuditRepo) All() []domain.AuditLog {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.AuditLog, len(r.store.audit))
	copy(out, r.store.audit)
	return out
}
