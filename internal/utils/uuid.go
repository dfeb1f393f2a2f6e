package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID; used to reject malformed path ids
// before hitting the database.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)

	return err == nil
}
