package postgres

import (
	"context"
	"errors"
	"fmt"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

var errSettingsMissing = errors.New("vault_settings row missing")

// SettingsRepo implements ports.SettingsRepository over the single
// vault_settings row.
type SettingsRepo struct {
	pool Pool
}

// NewSettingsRepo creates a new SettingsRepo.
func NewSettingsRepo(pool Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// Get fetches the controller state; nil when absent.
func (r *SettingsRepo) Get(ctx context.Context) (*domain.SafetyState, error) {
	query := `SELECT admin_id, deposit_cap, paused, updated_at FROM vault_settings WHERE id = 1`

	var admin string
	s := &domain.SafetyState{}
	err := r.pool.QueryRow(ctx, query).Scan(&admin, &s.DepositCap, &s.Paused, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	s.Admin = domain.AccountID(admin)
	return s, nil
}

// Create inserts the initial row; a concurrent or earlier insert wins.
func (r *SettingsRepo) Create(ctx context.Context, state *domain.SafetyState) error {
	query := `INSERT INTO vault_settings (id, admin_id, deposit_cap, paused, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, string(state.Admin), state.DepositCap, state.Paused, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	return nil
}

// SetPaused updates the flag within a transaction.
func (r *SettingsRepo) SetPaused(ctx context.Context, tx pgx.Tx, paused bool) error {
	query := `UPDATE vault_settings SET paused = $1, updated_at = NOW() WHERE id = 1`

	tag, err := tx.Exec(ctx, query, paused)
	if err != nil {
		return fmt.Errorf("update paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errSettingsMissing
	}
	return nil
}

// SetCap replaces the deposit cap.
func (r *SettingsRepo) SetCap(ctx context.Context, depositCap int64) error {
	query := `UPDATE vault_settings SET deposit_cap = $1, updated_at = NOW() WHERE id = 1`

	tag, err := r.pool.Exec(ctx, query, depositCap)
	if err != nil {
		return fmt.Errorf("update deposit cap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errSettingsMissing
	}
	return nil
}
