package memory

import (
	"context"
	"errors"
	"math"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

// GetBalance returns the committed balance; unknown accounts hold zero.
func (r *AccountRepo) GetBalance(_ context.Context, id domain.AccountID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.committed(id), nil
}

// GetBalanceForUpdate locks the row and returns the balance as tx sees it.
func (r *AccountRepo) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, id domain.AccountID) (int64, error) {
	mt, err := asTx(tx, r.store)
	if err != nil {
		return 0, err
	}
	if err := mt.lockRow(ctx, id); err != nil {
		return 0, err
	}
	return r.txBalance(mt, id), nil
}

// Credit adds amount to the balance tx sees.
func (r *AccountRepo) Credit(ctx context.Context, tx pgx.Tx, id domain.AccountID, amount int64) (int64, error) {
	mt, err := asTx(tx, r.store)
	if err != nil {
		return 0, err
	}
	if err := mt.lockRow(ctx, id); err != nil {
		return 0, err
	}
	current := r.txBalance(mt, id)
	if amount > math.MaxInt64-current {
		return 0, errors.New("memory: balance overflow")
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.balances[id] = current + amount
	return current + amount, nil
}

// Debit subtracts amount from the balance tx sees.
func (r *AccountRepo) Debit(ctx context.Context, tx pgx.Tx, id domain.AccountID, amount int64) (int64, error) {
	mt, err := asTx(tx, r.store)
	if err != nil {
		return 0, err
	}
	if err := mt.lockRow(ctx, id); err != nil {
		return 0, err
	}
	current := r.txBalance(mt, id)
	if current < amount {
		return 0, domain.ErrInsufficientBalance
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.balances[id] = current - amount
	return current - amount, nil
}

// TotalBalance sums committed balances.
func (r *AccountRepo) TotalBalance(_ context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int64
	for _, acc := range r.store.accounts {
		if acc.Balance > math.MaxInt64-total {
			return 0, errors.New("memory: total balance overflows int64")
		}
		total += acc.Balance
	}
	return total, nil
}

func (r *AccountRepo) txBalance(mt *Tx, id domain.AccountID) int64 {
	mt.mu.Lock()
	pending, ok := mt.balances[id]
	mt.mu.Unlock()
	if ok {
		return pending
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.committed(id)
}

func (r *AccountRepo) committed(id domain.AccountID) int64 {
	if acc, ok := r.store.accounts[id]; ok {
		return acc.Balance
	}
	return 0
}
