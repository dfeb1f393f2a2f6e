package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/inkwelldev/inkwell/internal/domain/post"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// every read/write returns the same projection: the post row joined with
// the author's name and email
const postProjection = `
	p.id,
	p.title,
	p.body,
	p.slug,
	p.featured_image,
	p.published,
	p.author_id,
	p.created_at,
	p.updated_at,
	u.name,
	u.email
`

type PostsRepo struct {
	pool *pgxpool.Pool
}

func NewPostsRepo(pool *pgxpool.Pool) *PostsRepo {
	return &PostsRepo{pool: pool}
}

func scanPost(row pgx.Row) (post.Post, error) {
	var p post.Post

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Body,
		&p.Slug,
		&p.FeaturedImage,
		&p.Published,
		&p.AuthorID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Author.Name,
		&p.Author.Email,
	)

	return p, err
}

func (r *PostsRepo) Create(ctx context.Context, p post.Post) (post.Post, error) {
	row := r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO posts (id, title, body, slug, featured_image, published, author_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, title, body, slug, featured_image, published, author_id, created_at, updated_at
		)
		SELECT `+postProjection+`
		FROM inserted p
		JOIN users u ON u.id = p.author_id
	`, p.ID, p.Title, p.Body, p.Slug, p.FeaturedImage, p.Published, p.AuthorID, p.CreatedAt, p.UpdatedAt)

	created, err := scanPost(row)

	if err != nil {
		if isUniqueViolation(err) {
			return post.Post{}, post.ErrSlugTaken
		}

		return post.Post{}, err
	}

	return created, nil
}

// ListPublished returns published posts ordered by last update, newest first.
func (r *PostsRepo) ListPublished(ctx context.Context, limit int) ([]post.Post, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+postProjection+`
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.published = TRUE
		ORDER BY p.updated_at DESC, p.id DESC
		LIMIT $1
	`, limit)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	return collectPosts(rows, limit)
}

// ListPublishedCursor is the keyset variant used once a caller pages past
// the first batch. Returns one extra row internally to detect hasMore.
func (r *PostsRepo) ListPublishedCursor(ctx context.Context, limit int, afterUpdatedAt time.Time, afterID string) ([]post.Post, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+postProjection+`
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.published = TRUE
		  AND (p.updated_at, p.id) < ($1, $2)
		ORDER BY p.updated_at DESC, p.id DESC
		LIMIT $3
	`, afterUpdatedAt, afterID, limit+1)

	if err != nil {
		return nil, false, err
	}

	defer rows.Close()

	out, err := collectPosts(rows, limit+1)

	if err != nil {
		return nil, false, err
	}

	hasMore := len(out) > limit

	if hasMore {
		out = out[:limit]
	}

	return out, hasMore, nil
}

// ListByAuthor is unfiltered by publish state and scoped to one author.
func (r *PostsRepo) ListByAuthor(ctx context.Context, authorID string) ([]post.Post, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+postProjection+`
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.author_id = $1
		ORDER BY p.updated_at DESC, p.id DESC
	`, authorID)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	return collectPosts(rows, 8)
}

func (r *PostsRepo) GetBySlug(ctx context.Context, slug string) (post.Post, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+postProjection+`
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.slug = $1
	`, slug)

	p, err := scanPost(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}

		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+postProjection+`
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1
	`, id)

	p, err := scanPost(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}

		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
	row := r.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE posts
			SET title = $2,
			    body = $3,
			    slug = $4,
			    featured_image = $5,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING id, title, body, slug, featured_image, published, author_id, created_at, updated_at
		)
		SELECT `+postProjection+`
		FROM updated p
		JOIN users u ON u.id = p.author_id
	`, id, req.Title, req.Body, req.Slug, req.FeaturedImage)

	p, err := scanPost(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}

		if isUniqueViolation(err) {
			return post.Post{}, post.ErrSlugTaken
		}

		return post.Post{}, err
	}

	return p, nil
}

// SetPublished flips the publish flag. Setting the same value again is a
// no-op side-effect-wise except that updated_at still advances.
func (r *PostsRepo) SetPublished(ctx context.Context, id string, published bool) (post.Post, error) {
	row := r.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE posts
			SET published = $2,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING id, title, body, slug, featured_image, published, author_id, created_at, updated_at
		)
		SELECT `+postProjection+`
		FROM updated p
		JOIN users u ON u.id = p.author_id
	`, id, published)

	p, err := scanPost(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}

		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return post.ErrNotFound
	}

	return nil
}

// helpers

func collectPosts(rows pgx.Rows, capHint int) ([]post.Post, error) {
	out := make([]post.Post, 0, capHint)

	for rows.Next() {
		p, err := scanPost(rows)

		if err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
