package postgres

import (
	"context"
	"errors"
	"fmt"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// GetBalance reads the committed balance (non-locking). Missing rows are zero.
func (r *AccountRepo) GetBalance(ctx context.Context, id domain.AccountID) (int64, error) {
	query := `SELECT balance FROM accounts WHERE id = $1`

	var balance int64
	err := r.pool.QueryRow(ctx, query, string(id)).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetBalanceForUpdate reads the balance with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, id domain.AccountID) (int64, error) {
	query := `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`

	var balance int64
	err := tx.QueryRow(ctx, query, string(id)).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance for update: %w", err)
	}
	return balance, nil
}

// Credit adds amount with an upsert so two first deposits cannot race.
func (r *AccountRepo) Credit(ctx context.Context, tx pgx.Tx, id domain.AccountID, amount int64) (int64, error) {
	query := `INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance`

	var balance int64
	if err := tx.QueryRow(ctx, query, string(id), amount).Scan(&balance); err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}
	return balance, nil
}

// Debit subtracts amount only if the row covers it.
func (r *AccountRepo) Debit(ctx context.Context, tx pgx.Tx, id domain.AccountID, amount int64) (int64, error) {
	query := `UPDATE accounts SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance`

	var balance int64
	err := tx.QueryRow(ctx, query, string(id), amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrInsufficientBalance
		}
		return 0, fmt.Errorf("debit account: %w", err)
	}
	return balance, nil
}

// TotalBalance sums every balance.
func (r *AccountRepo) TotalBalance(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(SUM(balance), 0)::BIGINT FROM accounts`

	var total int64
	if err := r.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("total balance: %w", err)
	}
	return total, nil
}
