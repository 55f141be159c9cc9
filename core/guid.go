package core

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultUserGUID identifies the anonymous user. It is intentionally not a
// valid UUID so it never resolves to a per-user namespace.
const DefaultUserGUID = "c0p110t0-aaaa-bbbb-cccc-123456789abc"

// IsValidGUID reports whether s is a canonical 36 character UUID.
func IsValidGUID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }
