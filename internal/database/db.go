// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rounds (
		id          UUID PRIMARY KEY,
		room        TEXT NOT NULL,
		winner      TEXT NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS round_results (
		round_id UUID NOT NULL REFERENCES rounds (id) ON DELETE CASCADE,
		player   TEXT NOT NULL,
		points   INTEGER NOT NULL,
		total    INTEGER NOT NULL,
		did_win  BOOLEAN NOT NULL,
		PRIMARY KEY (round_id, player)
	)`,
	`CREATE TABLE IF NOT EXISTS room_events (
		id         BIGSERIAL PRIMARY KEY,
		room       TEXT NOT NULL,
		round      TEXT,
		idx        BIGINT NOT NULL,
		player     TEXT,
		kind       TEXT NOT NULL,
		payload    JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS room_events_room_idx ON room_events (room, idx)`,
}

// Migrate creates the tables the server and historian write to.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
