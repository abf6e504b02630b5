package redis

import (
	"context"
	"fmt"
	"time"

	"custody-vault/config"
	"custody-vault/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	connectAttempts = 3
	connectBackoff  = 200 * time.Millisecond
)

// NewClient creates a Redis client and waits until it answers PING, retrying
// a few times so the vault can start alongside its Redis container.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	var err error
	for attempt := 1; ; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil || attempt == connectAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("addr", cfg.Addr()).Msg("redis not ready")

		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * connectBackoff):
		}
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("Redis connection established")

	return client, nil
}

// NewHealthCheck probes Redis with PING. The nonce store and the idempotency
// cache both depend on it.
func NewHealthCheck(client goredis.UniversalClient) ports.Probe {
	return ports.Probe{
		Dependency: "redis",
		PingFunc: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
