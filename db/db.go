package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Connect opens a pool and pings the server within timeout.
func Connect(dsn string, timeout time.Duration, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("failed to close database handle after ping error", slog.Any("error", closeErr))
		}
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS tournaments (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	state        JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS tournaments_created_at_idx ON tournaments (created_at DESC);

CREATE TABLE IF NOT EXISTS current_tournament (
	slot          SMALLINT PRIMARY KEY DEFAULT 1 CHECK (slot = 1),
	tournament_id TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT current_tournament_tournament_id_fkey
		FOREIGN KEY (tournament_id) REFERENCES tournaments (id) ON DELETE CASCADE
);
`

// EnsureSchema creates the tables the tournament repository needs. It is
// safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
