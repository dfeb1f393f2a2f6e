package post

import (
	"errors"
	"time"
)

// Author is the subset of the author's profile exposed on every post read.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Post is the default projection returned by every read/write operation.
type Post struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Slug          string    `json:"slug"`
	FeaturedImage string    `json:"featuredImage,omitempty"`
	Published     bool      `json:"published"`
	AuthorID      string    `json:"-"` // ownership checks only, not part of the projection
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Author        Author    `json:"author"`
}

var (
	ErrNotFound  = errors.New("post not found")
	ErrSlugTaken = errors.New("slug already in use")
)

type CreatePostRequest struct {
	Title         string `json:"title" binding:"required,min=3,max=160"`
	Slug          string `json:"slug" binding:"required,min=3,max=160"`
	Body          string `json:"body" binding:"required"`
	FeaturedImage string `json:"featuredImage" binding:"omitempty,url,max=500"`
}

// a full update payload; every mutable field is overwritten
type UpdatePostRequest struct {
	Title         string `json:"title" binding:"required,min=3,max=160"`
	Slug          string `json:"slug" binding:"required,min=3,max=160"`
	Body          string `json:"body" binding:"required"`
	FeaturedImage string `json:"featuredImage" binding:"omitempty,url,max=500"`
}
