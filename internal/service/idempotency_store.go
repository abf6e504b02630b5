package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/rs/zerolog"
)

const defaultIdempotencyTTL = 24 * time.Hour

// TieredIdempotencyStore implements ports.IdempotencyStore over a Redis
// cache (fast path) and a durable repository. Either layer may be nil.
type TieredIdempotencyStore struct {
	cache ports.IdempotencyCache
	repo  ports.IdempotencyRepository
	ttl   time.Duration
	log   zerolog.Logger
}

// NewTieredIdempotencyStore creates a store. ttl <= 0 selects 24h.
func NewTieredIdempotencyStore(
	cache ports.IdempotencyCache,
	repo ports.IdempotencyRepository,
	ttl time.Duration,
	log zerolog.Logger,
) *TieredIdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &TieredIdempotencyStore{cache: cache, repo: repo, ttl: ttl, log: log}
}

// Get returns the stored record for key, or nil.
func (s *TieredIdempotencyStore) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	// Layer 1: Redis
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			var record domain.IdempotencyRecord
			if err := json.Unmarshal(cached, &record); err == nil {
				return &record, nil
			}
			s.log.Warn().Str("key", key).Msg("discarding undecodable cached idempotency record")
		}
	}

	// Layer 2: DB
	if s.repo == nil {
		return nil, nil
	}
	record, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("db idempotency check: %w", err)
	}
	if record != nil {
		s.cacheRecord(ctx, record)
	}
	return record, nil
}

// Save stores record durably first, then caches it best-effort.
func (s *TieredIdempotencyStore) Save(ctx context.Context, record *domain.IdempotencyRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, record); err != nil {
			return fmt.Errorf("save idempotency record: %w", err)
		}
	}
	s.cacheRecord(ctx, record)
	return nil
}

func (s *TieredIdempotencyStore) cacheRecord(ctx context.Context, record *domain.IdempotencyRecord) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		s.log.Warn().Err(err).Str("key", record.Key).Msg("failed to encode idempotency record")
		return
	}
	if err := s.cache.Set(ctx, record.Key, data, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", record.Key).Msg("failed to cache idempotency in redis")
	}
}
