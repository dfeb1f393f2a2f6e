package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkwelldev/inkwell/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEmailAlreadyUsed = errors.New("email already in use")

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, image, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)

	return scanUser(row)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, image, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)

	return scanUser(row)
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, image, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Image, u.Role, u.CreatedAt, u.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, ErrEmailAlreadyUsed
		}

		return user.User{}, err
	}

	return u, nil
}

// UpsertOAuth creates the account on first third-party sign-in and refreshes
// the profile fields on every later one. Role is never touched here.
func (r *UsersRepo) UpsertOAuth(ctx context.Context, email, name, image string) (user.User, error) {
	now := time.Now().UTC()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, image, role, created_at, updated_at)
		VALUES ($1, $2, '', $3, $4, '', $5, $5)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    image = EXCLUDED.image,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, email, password_hash, name, image, role, created_at, updated_at
	`, uuid.NewString(), email, name, image, now)

	return scanUser(row)
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Image,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}
