package user

import (
	"errors"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON; empty for OAuth-only accounts
	Name         string    `json:"name"`
	Image        string    `json:"image,omitempty"`
	Role         string    `json:"role,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("user not found")
