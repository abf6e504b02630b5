package postgres

import (
	"context"
	"errors"
	"fmt"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create stores a replayable response. The first writer of a key wins.
func (r *IdempotencyRepo) Create(ctx context.Context, record *domain.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_logs (key, request_hash, status_code, response_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, record.Key, record.RequestHash, record.StatusCode, record.ResponseJSON, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert idempotency log: %w", err)
	}
	return nil
}

// Get fetches a stored response by key; nil when absent.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, request_hash, status_code, response_json, created_at FROM idempotency_logs WHERE key = $1`

	record := &domain.IdempotencyRecord{}
	err := r.pool.QueryRow(ctx, query, key).Scan(&record.Key, &record.RequestHash, &record.StatusCode, &record.ResponseJSON, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	return record, nil
}
