package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwelldev/inkwell/internal/cache"
	"github.com/inkwelldev/inkwell/internal/config"
	"github.com/inkwelldev/inkwell/internal/domain/post"
	"github.com/inkwelldev/inkwell/internal/http/middlewares"
	"github.com/inkwelldev/inkwell/internal/observability"
	"github.com/inkwelldev/inkwell/internal/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	publishedListKey = "posts:published"
)

type PostsRepository interface {
	Create(ctx context.Context, p post.Post) (post.Post, error)
	ListPublished(ctx context.Context, limit int) ([]post.Post, error)
	ListPublishedCursor(ctx context.Context, limit int, afterUpdatedAt time.Time, afterID string) ([]post.Post, bool, error)
	ListByAuthor(ctx context.Context, authorID string) ([]post.Post, error)
	GetBySlug(ctx context.Context, slug string) (post.Post, error)
	GetByID(ctx context.Context, id string) (post.Post, error)
	Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error)
	SetPublished(ctx context.Context, id string, published bool) (post.Post, error)
	Delete(ctx context.Context, id string) error
}

type PostsHandler struct {
	repo    PostsRepository
	cache   cache.Store
	metrics *observability.Prom
}

// NewPostsHandler wires the repo plus optional listing cache and metrics;
// either may be nil.
func NewPostsHandler(repo PostsRepository, store cache.Store, metrics *observability.Prom) *PostsHandler {
	return &PostsHandler{repo: repo, cache: store, metrics: metrics}
}

// observeDB records DB metrics for fn. Domain sentinels (missing post,
// taken slug) are expected outcomes, not storage failures, so they are kept
// out of the error counters.
func (h *PostsHandler) observeDB(op string, fn func() error) error {
	if h.metrics == nil {
		return fn()
	}

	var domainErr error

	err := h.metrics.ObserveDB(op, func() error {
		err := fn()

		if errors.Is(err, post.ErrNotFound) || errors.Is(err, post.ErrSlugTaken) {
			domainErr = err
			return nil
		}

		return err
	})

	if domainErr != nil {
		return domainErr
	}

	return err
}

// POST /posts

func (h *PostsHandler) CreatePost(ctx *gin.Context) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || callerID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Can not create a post while logged out")
		return
	}

	var req post.CreatePostRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// slugs are the public lookup key; one that normalizes to nothing
	// would create an unreachable post
	req.Slug = post.NormalizeSlug(req.Slug)

	if req.Slug == "" {
		RespondBadRequest(ctx, "slug must contain at least one URL-safe character", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	var created post.Post

	err := h.observeDB("posts.create", func() error {
		var err error
		created, err = h.repo.Create(cctx, post.NewFromCreateRequest(req, callerID))
		return err
	})

	if err != nil {
		if errors.Is(err, post.ErrSlugTaken) {
			RespondConflict(ctx, "slug_taken", "A post with this slug already exists.")
			return
		}

		RespondInternal(ctx, "Could not create post")
		return
	}

	h.invalidateListing(ctx)

	ctx.JSON(http.StatusCreated, created)
}

// GET /posts

func (h *PostsHandler) ListPublished(ctx *gin.Context) {
	limit := defaultListLimit

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 1 || n > maxListLimit {
			RespondBadRequest(ctx, "limit must be between 1 and "+strconv.Itoa(maxListLimit), nil)
			return
		}

		limit = n
	}

	cursor := ctx.Query("cursor")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// cursor pages skip the cache; only the first default page is hot
	if cursor == "" && limit == defaultListLimit {
		if body, ok := h.cachedListing(ctx); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
	}

	var (
		items   []post.Post
		hasMore bool
	)

	if cursor == "" {
		err := h.observeDB("posts.list_published", func() error {
			var err error
			items, err = h.repo.ListPublished(cctx, limit)
			return err
		})

		if err != nil {
			RespondInternal(ctx, "Could not list posts")
			return
		}

		hasMore = len(items) == limit
	} else {
		after, err := utils.DecodePostCursor(cursor)

		if err != nil {
			RespondBadRequest(ctx, "invalid cursor", nil)
			return
		}

		err = h.observeDB("posts.list_published", func() error {
			var repoErr error
			items, hasMore, repoErr = h.repo.ListPublishedCursor(cctx, limit, after.UpdatedAt, after.ID)
			return repoErr
		})

		if err != nil {
			RespondInternal(ctx, "Could not list posts")
			return
		}
	}

	payload := gin.H{
		"items": items,
		"count": len(items),
	}

	if hasMore && len(items) > 0 {
		last := items[len(items)-1]

		next, err := utils.EncodePostCursor(last.UpdatedAt, last.ID)

		if err == nil {
			payload["nextCursor"] = next
		}
	}

	if cursor == "" && limit == defaultListLimit {
		h.storeListing(ctx, payload)
	}

	ctx.JSON(http.StatusOK, payload)
}

// GET /posts/:slug

func (h *PostsHandler) GetBySlug(ctx *gin.Context) {
	slug := ctx.Param("slug")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	var p post.Post

	err := h.observeDB("posts.get_by_slug", func() error {
		var err error
		p, err = h.repo.GetBySlug(cctx, slug)
		return err
	})

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "No post with slug '"+slug+"'")
			return
		}

		RespondInternal(ctx, "Could not fetch post")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

// GET /me/posts

func (h *PostsHandler) ListMine(ctx *gin.Context) {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || callerID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Can not get your posts while logged out")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	var items []post.Post

	err := h.observeDB("posts.list_by_author", func() error {
		var err error
		items, err = h.repo.ListByAuthor(cctx, callerID)
		return err
	})

	if err != nil {
		RespondInternal(ctx, "Could not list your posts")
		return
	}

	// zero posts is an empty page, not an error
	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// PUT /posts/:id

func (h *PostsHandler) UpdatePost(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "post id must be a valid UUID", nil)
		return
	}

	var req post.UpdatePostRequest

	if !BindJSON(ctx, &req) {
		return
	}

	req.Slug = post.NormalizeSlug(req.Slug)

	if req.Slug == "" {
		RespondBadRequest(ctx, "slug must contain at least one URL-safe character", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if !h.requireOwnership(ctx, cctx, id) {
		return
	}

	var updated post.Post

	err := h.observeDB("posts.update", func() error {
		var err error
		updated, err = h.repo.Update(cctx, id, req)
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, post.ErrNotFound):
			RespondNotFound(ctx, "Post not found")
		case errors.Is(err, post.ErrSlugTaken):
			RespondConflict(ctx, "slug_taken", "A post with this slug already exists.")
		default:
			RespondInternal(ctx, "Could not update post")
		}
		return
	}

	h.invalidateListing(ctx)

	ctx.JSON(http.StatusOK, updated)
}

// DELETE /posts/:id

func (h *PostsHandler) DeletePost(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "post id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if !h.requireOwnership(ctx, cctx, id) {
		return
	}

	err := h.observeDB("posts.delete", func() error {
		return h.repo.Delete(cctx, id)
	})

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not delete post")
		return
	}

	h.invalidateListing(ctx)

	ctx.JSON(http.StatusOK, gin.H{"id": id})
}

// POST /posts/:id/publish

func (h *PostsHandler) PublishPost(ctx *gin.Context) {
	h.setPublished(ctx, true)
}

// POST /posts/:id/unpublish

func (h *PostsHandler) UnpublishPost(ctx *gin.Context) {
	h.setPublished(ctx, false)
}

func (h *PostsHandler) setPublished(ctx *gin.Context, published bool) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "post id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if !h.requireOwnership(ctx, cctx, id) {
		return
	}

	var p post.Post

	err := h.observeDB("posts.set_published", func() error {
		var err error
		p, err = h.repo.SetPublished(cctx, id, published)
		return err
	})

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not update post")
		return
	}

	h.invalidateListing(ctx)

	ctx.JSON(http.StatusOK, p)
}

// requireOwnership fetches the post and rejects callers who neither authored
// it nor hold the admin role. Writes the response itself on failure.
func (h *PostsHandler) requireOwnership(ctx *gin.Context, cctx context.Context, id string) bool {
	callerID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || callerID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return false
	}

	var existing post.Post

	err := h.observeDB("posts.get_by_id", func() error {
		var err error
		existing, err = h.repo.GetByID(cctx, id)
		return err
	})

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return false
		}

		RespondInternal(ctx, "Could not fetch post")
		return false
	}

	if existing.AuthorID == callerID {
		return true
	}

	if role, ok := middlewares.RoleFromContext(ctx); ok && role == "admin" {
		return true
	}

	RespondForbidden(ctx, "Only the author can modify this post")
	return false
}

// listing cache helpers

func (h *PostsHandler) cachedListing(ctx *gin.Context) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}

	body, ok := h.cache.Get(ctx.Request.Context(), publishedListKey)

	if h.metrics != nil {
		if ok {
			h.metrics.CacheHits.WithLabelValues(publishedListKey).Inc()
		} else {
			h.metrics.CacheMisses.WithLabelValues(publishedListKey).Inc()
		}
	}

	return body, ok
}

func (h *PostsHandler) storeListing(ctx *gin.Context, payload gin.H) {
	if h.cache == nil {
		return
	}

	body, err := json.Marshal(payload)

	if err != nil {
		return
	}

	h.cache.Set(ctx.Request.Context(), publishedListKey, body)
}

func (h *PostsHandler) invalidateListing(ctx *gin.Context) {
	if h.cache == nil {
		return
	}

	h.cache.Delete(ctx.Request.Context(), publishedListKey)
}
