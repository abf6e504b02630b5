package postgres

import (
	"context"
	"fmt"
)

// schemaStatements create the vault tables. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS vault_settings (
		id          SMALLINT PRIMARY KEY CHECK (id = 1),
		admin_id    TEXT NOT NULL,
		deposit_cap BIGINT NOT NULL CHECK (deposit_cap >= 0),
		paused      BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_events (
		seq        BIGSERIAL PRIMARY KEY,
		id         UUID NOT NULL UNIQUE,
		kind       TEXT NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		admin_id   TEXT NOT NULL DEFAULT '',
		amount     BIGINT NOT NULL,
		prev_hash  TEXT NOT NULL,
		hash       TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_events_account_idx ON ledger_events (account_id, seq)`,
	`CREATE INDEX IF NOT EXISTS ledger_events_admin_idx ON ledger_events (admin_id, seq)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id         UUID PRIMARY KEY,
		caller     TEXT NOT NULL,
		action     TEXT NOT NULL,
		outcome    TEXT NOT NULL,
		details    TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_logs (
		key           TEXT PRIMARY KEY,
		request_hash  TEXT NOT NULL DEFAULT '',
		status_code   INTEGER NOT NULL,
		response_json BYTEA NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE idempotency_logs ADD COLUMN IF NOT EXISTS request_hash TEXT NOT NULL DEFAULT ''`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
