package memory

import (
	"context"
	"errors"
	"time"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

var errNoSettings = errors.New("memory: safety state not created")

// SettingsRepo implements ports.SettingsRepository.
type SettingsRepo struct {
	store *Store
}

// NewSettingsRepo creates a new SettingsRepo.
func NewSettingsRepo(store *Store) *SettingsRepo {
	return &SettingsRepo{store: store}
}

// Get returns a copy of the committed state, or nil.
func (r *SettingsRepo) Get(_ context.Context) (*domain.SafetyState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if r.store.settings == nil {
		return nil, nil
	}
	state := *r.store.settings
	return &state, nil
}

// Create stores state unless one already exists.
func (r *SettingsRepo) Create(_ context.Context, state *domain.SafetyState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.settings != nil {
		return nil
	}
	cp := *state
	r.store.settings = &cp
	return nil
}

// SetPaused buffers the flag change in tx.
func (r *SettingsRepo) SetPaused(_ context.Context, tx pgx.Tx, paused bool) error {
	mt, err := asTx(tx, r.store)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	exists := r.store.settings != nil
	r.store.mu.RUnlock()
	if !exists {
		return errNoSettings
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return pgx.ErrTxClosed
	}
	mt.paused = &paused
	return nil
}

// SetCap replaces the deposit cap.
func (r *SettingsRepo) SetCap(_ context.Context, depositCap int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.settings == nil {
		return errNoSettings
	}
	r.store.settings.DepositCap = depositCap
	r.store.settings.UpdatedAt = time.Now().UTC()
	return nil
}
