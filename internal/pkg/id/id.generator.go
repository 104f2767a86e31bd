package id

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes used across the structure service.
const (
	PrefixProject        = "prj"
	PrefixModule         = "mod"
	PrefixFeature        = "feat"
	PrefixModuleVersion  = "mver"
	PrefixFeatureVersion = "fver"
)

// New returns a prefixed, lexicographically sortable identifier,
// e.g. mod_01J8ZQ4T2N3F9W7K5X0V6B1C8D.
func New(prefix string) string {
	u := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return prefix + "_" + u.String()
}

// Prefix returns the prefix part of an identifier, or "" when it has none.
func Prefix(id string) string {
	i := strings.IndexByte(id, '_')
	if i < 0 {
		return ""
	}
	return id[:i]
}
