package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables on boot if they are missing. Good enough
// for a single-service schema; swap for real migrations if this grows.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			name          TEXT NOT NULL DEFAULT '',
			image         TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS posts (
			id             UUID PRIMARY KEY,
			title          TEXT NOT NULL,
			body           TEXT NOT NULL,
			slug           TEXT NOT NULL UNIQUE,
			featured_image TEXT NOT NULL DEFAULT '',
			published      BOOLEAN NOT NULL DEFAULT FALSE,
			author_id      UUID NOT NULL REFERENCES users(id),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS posts_published_updated_idx
			ON posts (updated_at DESC, id DESC) WHERE published;

		CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author_id);

		CREATE TABLE IF NOT EXISTS refresh_tokens (
			id          UUID PRIMARY KEY,
			user_id     UUID NOT NULL REFERENCES users(id),
			token_hash  TEXT NOT NULL,
			expires_at  TIMESTAMPTZ NOT NULL,
			revoked_at  TIMESTAMPTZ,
			replaced_by UUID,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS refresh_tokens_user_idx ON refresh_tokens (user_id);
	`)

	return err
}
