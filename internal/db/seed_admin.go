package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkwelldev/inkwell/internal/config"
	"github.com/inkwelldev/inkwell/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser seeds the moderation account when ADMIN_EMAIL/PASSWORD are
// configured. The admin can manage any post, not just their own.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, image, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', $5, $6, $6)
	`, uuid.NewString(), cfg.AdminEmail, hash, cfg.AdminName, cfg.AdminRole, now)

	return err
}
