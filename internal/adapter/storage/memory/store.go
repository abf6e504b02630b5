// Package memory is a process-local storage backend with the same
// transactional contract as the postgres adapter: writes made through a
// transaction stay private to it until Commit, row locks are held until the
// transaction ends, and Rollback discards everything.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ErrForeignTx is returned when a repository receives a transaction that
// was not opened by this store.
var ErrForeignTx = errors.New("memory: transaction not opened by this store")

// Store holds every table. Create one with NewStore and share it between
// the repositories and the transactor.
type Store struct {
	mu       sync.RWMutex
	accounts map[domain.AccountID]*domain.Account
	settings *domain.SafetyState
	events   []domain.Event
	audit    []domain.AuditLog
	idem     map[string]domain.IdempotencyRecord

	locksMu  sync.Mutex
	rowLocks map[domain.AccountID]chan struct{}
	journal  chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[domain.AccountID]*domain.Account),
		idem:     make(map[string]domain.IdempotencyRecord),
		rowLocks: make(map[domain.AccountID]chan struct{}),
		journal:  make(chan struct{}, 1),
	}
}

func (s *Store) rowLock(id domain.AccountID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.rowLocks[id] = l
	}
	return l
}

// Tx is the store's pgx.Tx. Only Commit and Rollback are supported; the
// embedded interface is nil and any other pgx.Tx method panics.
type Tx struct {
	pgx.Tx

	store *Store

	mu       sync.Mutex
	done     bool
	balances map[domain.AccountID]int64
	paused   *bool
	events   []domain.Event
	rows     []chan struct{}
	held     map[domain.AccountID]bool
	journal  bool
}

// Transactor implements ports.DBTransactor for the memory store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a new Transactor.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin opens a transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:    t.store,
		balances: make(map[domain.AccountID]int64),
		held:     make(map[domain.AccountID]bool),
	}, nil
}

func asTx(tx pgx.Tx, store *Store) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt.store != store {
		return nil, ErrForeignTx
	}
	return mt, nil
}

// lockRow takes the account row lock for the rest of the transaction.
func (t *Tx) lockRow(ctx context.Context, id domain.AccountID) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	if t.held[id] {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	l := t.store.rowLock(id)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		<-l
		return pgx.ErrTxClosed
	}
	t.held[id] = true
	t.rows = append(t.rows, l)
	return nil
}

// lockJournal serialises journal appenders until the transaction ends.
func (t *Tx) lockJournal(ctx context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	if t.journal {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	select {
	case t.store.journal <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		<-t.store.journal
		return pgx.ErrTxClosed
	}
	t.journal = true
	return nil
}

// Commit applies buffered writes atomically and releases locks.
func (t *Tx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}

	s := t.store
	s.mu.Lock()
	now := time.Now().UTC()
	for id, balance := range t.balances {
		acc, ok := s.accounts[id]
		if !ok {
			acc = &domain.Account{ID: id, CreatedAt: now}
			s.accounts[id] = acc
		}
		acc.Balance = balance
		acc.UpdatedAt = now
	}
	if t.paused != nil && s.settings != nil {
		s.settings.Paused = *t.paused
		s.settings.UpdatedAt = now
	}
	s.events = append(s.events, t.events...)
	s.mu.Unlock()

	t.releaseLocked()
	return nil
}

// Rollback discards buffered writes and releases locks. Rolling back a
// finished transaction returns pgx.ErrTxClosed, as pgx does.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.releaseLocked()
	return nil
}

func (t *Tx) releaseLocked() {
	t.done = true
	t.balances = nil
	t.paused = nil
	t.events = nil
	for _, l := range t.rows {
		<-l
	}
	t.rows = nil
	if t.journal {
		<-t.store.journal
		t.journal = false
	}
}
