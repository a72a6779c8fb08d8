package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUID string
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id is a canonical UUID
func IsValidID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == strings.ToLower(id)
}

// ShortID returns the first eight hex characters of id for log lines
func ShortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
