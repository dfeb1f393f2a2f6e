package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inkwelldev/inkwell/internal/domain/post"
)

// PostsRepo is an in-memory stand-in for the postgres repo. It backs unit
// tests and local hacking without a database.
type PostsRepo struct {
	mu      sync.RWMutex
	items   map[string]post.Post
	authors map[string]post.Author // authorID -> projection fields
}

func NewPostsRepo() *PostsRepo {
	return &PostsRepo{
		items:   make(map[string]post.Post),
		authors: make(map[string]post.Author),
	}
}

// RegisterAuthor makes the author's name/email available for projections.
func (r *PostsRepo) RegisterAuthor(id string, a post.Author) {
	r.mu.Lock()
	r.authors[id] = a
	r.mu.Unlock()
}

func (r *PostsRepo) Create(ctx context.Context, p post.Post) (post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.Slug == p.Slug {
			return post.Post{}, post.ErrSlugTaken
		}
	}

	p.Author = r.authors[p.AuthorID]
	r.items[p.ID] = p

	return p, nil
}

func (r *PostsRepo) ListPublished(ctx context.Context, limit int) ([]post.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]post.Post, 0, len(r.items))

	for _, p := range r.items {
		if p.Published {
			out = append(out, p)
		}
	}

	sortNewestFirst(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *PostsRepo) ListPublishedCursor(ctx context.Context, limit int, afterUpdatedAt time.Time, afterID string) ([]post.Post, bool, error) {
	all, err := r.ListPublished(ctx, 0)

	if err != nil {
		return nil, false, err
	}

	out := make([]post.Post, 0, limit)

	for _, p := range all {
		if p.UpdatedAt.After(afterUpdatedAt) {
			continue
		}
		if p.UpdatedAt.Equal(afterUpdatedAt) && p.ID >= afterID {
			continue
		}
		out = append(out, p)
	}

	hasMore := len(out) > limit

	if hasMore {
		out = out[:limit]
	}

	return out, hasMore, nil
}

func (r *PostsRepo) ListByAuthor(ctx context.Context, authorID string) ([]post.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]post.Post, 0)

	for _, p := range r.items {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}

	sortNewestFirst(out)

	return out, nil
}

func (r *PostsRepo) GetBySlug(ctx context.Context, slug string) (post.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.items {
		if p.Slug == slug {
			return p, nil
		}
	}

	return post.Post{}, post.ErrNotFound
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]

	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	return p, nil
}

func (r *PostsRepo) Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]

	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	for otherID, other := range r.items {
		if otherID != id && other.Slug == req.Slug {
			return post.Post{}, post.ErrSlugTaken
		}
	}

	p.Title = req.Title
	p.Body = req.Body
	p.Slug = req.Slug
	p.FeaturedImage = req.FeaturedImage
	p.UpdatedAt = time.Now().UTC()

	r.items[id] = p

	return p, nil
}

func (r *PostsRepo) SetPublished(ctx context.Context, id string, published bool) (post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]

	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	p.Published = published
	p.UpdatedAt = time.Now().UTC()

	r.items[id] = p

	return p, nil
}

func (r *PostsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return post.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

func sortNewestFirst(posts []post.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].UpdatedAt.Equal(posts[j].UpdatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].UpdatedAt.After(posts[j].UpdatedAt)
	})
}
