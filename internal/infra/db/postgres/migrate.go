package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"medication-reminder-bot/internal/domain"
)

// Schema mirrors deploy/postgres/init.sql. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS user_streaks (
    user_id      BIGINT PRIMARY KEY,
    streak       INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
    last_updated TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS polls (
    poll_id    TEXT PRIMARY KEY,
    chat_id    BIGINT NOT NULL,
    message_id INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE polls ADD COLUMN IF NOT EXISTS closed_at TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS idx_polls_open ON polls (created_at) WHERE closed_at IS NULL;
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%w: migrate: %w", domain.ErrPersistence, err)
	}
	return nil
}
