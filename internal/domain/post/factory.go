package post

import (
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// NewFromCreateRequest builds a draft post owned by authorID.
// The slug is normalized so lookups stay URL-safe regardless of what
// the editor submitted.
func NewFromCreateRequest(req CreatePostRequest, authorID string) Post {
	now := time.Now().UTC()

	return Post{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Body:          req.Body,
		Slug:          NormalizeSlug(req.Slug),
		FeaturedImage: req.FeaturedImage,
		Published:     false,
		AuthorID:      authorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func NormalizeSlug(raw string) string {
	return slug.Make(raw)
}
