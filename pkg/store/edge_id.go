package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizedEdgeID derives a deterministic edge id from the
// lexicographically ordered endpoints, the relationship label, and
// the index. The returned reversed flag records whether the authored
// direction runs against the normalized order, so the logical
// direction can be reconstructed on read.
func NormalizedEdgeID(source, target, relationship, index string) (id string, reversed bool) {
	a, b := source, target
	if b < a {
		a, b = b, a
		reversed = true
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{a, b, relationship, index}, "|")))
	return hex.EncodeToString(sum[:]), reversed
}
