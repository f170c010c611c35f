package uid

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a new request identifier.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewToken returns prefix followed by two random UUIDs in compact hex form.
func NewToken(prefix string) string {
	a := strings.ReplaceAll(uuid.New().String(), "-", "")
	b := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + a + b
}

// HasPrefix reports whether token was produced by NewToken with prefix.
func HasPrefix(token, prefix string) bool {
	return strings.HasPrefix(token, prefix) && len(token) == len(prefix)+64
}
