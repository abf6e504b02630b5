package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// journalLockKey is the advisory lock that serialises journal appenders.
const journalLockKey int64 = 0x76617574 // "vaut"

// EventRepo implements ports.EventRepository.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// LastHash takes the journal advisory lock for the rest of tx and reads the head hash.
func (r *EventRepo) LastHash(ctx context.Context, tx pgx.Tx) (string, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, journalLockKey); err != nil {
		return "", fmt.Errorf("lock journal: %w", err)
	}

	var hash string
	err := tx.QueryRow(ctx, `SELECT hash FROM ledger_events ORDER BY seq DESC LIMIT 1`).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GenesisHash, nil
		}
		return "", fmt.Errorf("read journal head: %w", err)
	}
	return hash, nil
}

// Append inserts a sealed event and records its assigned Seq.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error {
	query := `INSERT INTO ledger_events (id, kind, account_id, admin_id, amount, prev_hash, hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`

	err := tx.QueryRow(ctx, query,
		event.ID, string(event.Kind), string(event.Account), string(event.Admin),
		event.Amount, event.PrevHash, event.Hash, event.CreatedAt,
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns events matching params, ascending by Seq.
func (r *EventRepo) List(ctx context.Context, params ports.EventListParams) ([]domain.Event, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("seq > $%d", argIdx))
	args = append(args, params.AfterSeq)
	argIdx++

	if params.Filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, string(params.Filter.Kind))
		argIdx++
	}
	if params.Filter.Account != "" {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIdx))
		args = append(args, string(params.Filter.Account))
		argIdx++
	}
	if params.Filter.Admin != "" {
		conditions = append(conditions, fmt.Sprintf("admin_id = $%d", argIdx))
		args = append(args, string(params.Filter.Admin))
		argIdx++
	}

	query := fmt.Sprintf(`SELECT seq, id, kind, account_id, admin_id, amount, prev_hash, hash, created_at
		FROM ledger_events WHERE %s ORDER BY seq ASC`, strings.Join(conditions, " AND "))
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, params.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0)
	for rows.Next() {
		var (
			e                    domain.Event
			kind, account, admin string
		)
		err := rows.Scan(&e.Seq, &e.ID, &kind, &account, &admin, &e.Amount, &e.PrevHash, &e.Hash, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.Account = domain.AccountID(account)
		e.Admin = domain.AccountID(admin)
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
