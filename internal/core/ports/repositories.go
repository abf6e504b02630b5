package ports

import (
	"context"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for account balances.
// Unknown accounts read as zero. Methods accepting pgx.Tx run inside the
// caller's unit of work and take row locks where noted.
type AccountRepository interface {
	GetBalance(ctx context.Context, id domain.AccountID) (int64, error)
	// GetBalanceForUpdate reads the balance and locks the row until the
	// transaction ends.
	GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, id domain.AccountID) (int64, error)
	// Credit adds amount, creating the row on first use, and returns the new balance.
	Credit(ctx context.Context, tx pgx.Tx, id domain.AccountID, amount int64) (int64, error)
	// Debit subtracts amount and returns the new balance. Returns
	// domain.ErrInsufficientBalance when the row cannot cover amount.
	Debit(ctx context.Context, tx pgx.Tx, id domain.AccountID, amount int64) (int64, error)
	// TotalBalance is the sum of all balances.
	TotalBalance(ctx context.Context) (int64, error)
}

// SettingsRepository persists the safety controller state. There is at most
// one row.
type SettingsRepository interface {
	// Get returns nil, nil when no state has been created yet.
	Get(ctx context.Context) (*domain.SafetyState, error)
	// Create inserts the initial state; an existing row is left untouched.
	Create(ctx context.Context, state *domain.SafetyState) error
	SetPaused(ctx context.Context, tx pgx.Tx, paused bool) error
	SetCap(ctx context.Context, depositCap int64) error
}

// EventRepository is the append-only journal.
type EventRepository interface {
	// LastHash returns the hash of the newest record and serialises appenders
	// until tx ends, so two transactions never chain onto the same record.
	LastHash(ctx context.Context, tx pgx.Tx) (string, error)
	// Append stores a sealed record and assigns its Seq.
	Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error
	List(ctx context.Context, params EventListParams) ([]domain.Event, error)
}

// EventListParams filters and pages journal queries. Results are ascending by Seq.
type EventListParams struct {
	Filter   domain.EventFilter
	AfterSeq int64
	Limit    int
}

// AuditRepository persists administrative audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// IdempotencyRepository is the durable layer for replayed responses.
type IdempotencyRepository interface {
	// Create stores the record; an existing key is left untouched.
	Create(ctx context.Context, record *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
