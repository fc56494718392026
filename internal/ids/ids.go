// Package ids mints opaque, process-unique identifiers and reads wall-clock time
// the way the rest of the proxy expects it: integer unix seconds.
package ids

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns an opaque identifier of the form "<prefix>_<32 hex chars>".
// The random component is a UUIDv4's raw bits, hex-encoded without dashes.
func New(prefix string) string {
	raw := uuid.New()
	hex := strings.ReplaceAll(raw.String(), "-", "")

	return prefix + "_" + hex
}

// Now returns the current wall-clock time as integer unix seconds.
func Now() int64 {
	return time.Now().Unix()
}
