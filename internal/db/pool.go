package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		nation_id TEXT UNIQUE,
		credits_cents BIGINT NOT NULL DEFAULT 0 CHECK (credits_cents >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS companies (
		name TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL REFERENCES users (user_id),
		price_cents BIGINT NOT NULL CHECK (price_cents > 0),
		available_shares BIGINT NOT NULL CHECK (available_shares >= 0),
		registered_shares BIGINT NOT NULL CHECK (registered_shares > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (available_shares <= registered_shares)
	)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		user_id TEXT NOT NULL REFERENCES users (user_id),
		company_name TEXT NOT NULL,
		shares BIGINT NOT NULL DEFAULT 0 CHECK (shares >= 0),
		PRIMARY KEY (user_id, company_name)
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		company_name TEXT NOT NULL,
		sampled_at TIMESTAMPTZ NOT NULL,
		price_cents BIGINT NOT NULL,
		PRIMARY KEY (company_name, sampled_at)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		seller_user_id TEXT NOT NULL,
		company_name TEXT NOT NULL,
		shares_available BIGINT NOT NULL CHECK (shares_available > 0),
		price_per_share_cents BIGINT NOT NULL CHECK (price_per_share_cents > 0),
		restricted_to TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		company_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		shares BIGINT NOT NULL,
		price_cents BIGINT NOT NULL,
		total_cents BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS trades_company_idx ON trades (company_name)`,
	`CREATE INDEX IF NOT EXISTS transactions_created_idx ON transactions (created_at DESC)`,
}

// Migrate creates the ledger schema if it does not exist yet. Statements
// are individually idempotent so startup can run this unconditionally.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
