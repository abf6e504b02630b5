package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore implements ports.NonceStore using Redis SET NX.
type NonceStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewNonceStore creates a new Redis-backed nonce store.
func NewNonceStore(client goredis.UniversalClient) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: "vault:nonce:",
	}
}

// CheckAndSet atomically records nonce under scope.
// Returns true if the nonce is new, false if already used.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	key := s.prefix + scope + ":" + nonce
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// key exists: replay
			return false, nil
		}
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return result == "OK", nil
}
