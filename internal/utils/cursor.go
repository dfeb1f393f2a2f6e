package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// PostCursor is the keyset position for the published listing:
// (updatedAt DESC, id DESC).
type PostCursor struct {
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
}

func EncodePostCursor(updatedAt time.Time, id string) (string, error) {
	b, err := json.Marshal(PostCursor{UpdatedAt: updatedAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodePostCursor(cursor string) (PostCursor, error) {
	if cursor == "" {
		return PostCursor{}, errors.New("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return PostCursor{}, err
	}

	var c PostCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return PostCursor{}, err
	}
	if c.ID == "" || c.UpdatedAt.IsZero() {
		return PostCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
