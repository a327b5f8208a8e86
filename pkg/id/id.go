// Package id generates ULIDs: random ones for runs, derived ones for
// positions so replays reproduce the same identifiers.
package id

import (
	"crypto/sha256"
	"time"

	"github.com/oklog/ulid/v2"
)

// New returns a random, time-sortable ULID. IDs made within the same
// millisecond still sort in creation order.
func New() string {
	return ulid.Make().String()
}

// Derive returns a ULID whose time part is t and whose entropy is taken from
// a hash of key and t. The same (key, t) always yields the same ID. Times
// outside the ULID range (before 1970 or past year 10889) are clamped in the
// time part; the hash still carries the full time.
func Derive(key string, t time.Time) string {
	sum := sha256.Sum256([]byte(key + "|" + t.UTC().Format(time.RFC3339Nano)))

	var u ulid.ULID
	// Both setters only fail on out-of-range input, which clampTime and the
	// fixed entropy length rule out.
	_ = u.SetTime(clampTime(t))
	_ = u.SetEntropy(sum[:10])
	return u.String()
}

func clampTime(t time.Time) uint64 {
	ms := t.UnixMilli()
	switch {
	case ms < 0:
		return 0
	case uint64(ms) > ulid.MaxTime():
		return ulid.MaxTime()
	}
	return uint64(ms)
}
