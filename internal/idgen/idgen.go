// Package idgen generates random identifiers for stored records.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// Prefixes for the records this service creates.
const (
	PrefixSettings = "cs_"
	PrefixAudit    = "aud_"
)

// New returns a random (v4) UUID string.
func New() string {
	return uuid.NewString()
}

// WithPrefix returns prefix followed by 32 hex chars of a random UUID,
// e.g. "cs_3f2b...".
func WithPrefix(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
