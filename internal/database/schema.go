package database

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	tier          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS usage_trackers (
	user_id    TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
	tier       TEXT NOT NULL,
	items      JSONB NOT NULL DEFAULT '{}',
	bytes      JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS saved_items (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	category     TEXT NOT NULL,
	utility_id   TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL,
	object_key   TEXT NOT NULL,
	size         BIGINT NOT NULL CHECK (size >= 0),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_saved_items_user_created ON saved_items (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS usage_events (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	tier        TEXT NOT NULL,
	category    TEXT NOT NULL,
	item_delta  BIGINT NOT NULL,
	byte_delta  BIGINT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_events_user_time ON usage_events (user_id, occurred_at DESC);
`

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
