package types

import (
	"errors"
	"strings"
)

var (
	// ErrSelfLoop is returned when an edge references the same node on
	// both ends.
	ErrSelfLoop = errors.New("edge source equals target")
	// ErrEmptyEndpoint is returned when an edge is missing an endpoint.
	ErrEmptyEndpoint = errors.New("edge endpoint missing")
)

// Edge is a labelled connection between two nodes of the same index.
//
// Edges are stored with the direction the language model authored, but
// are treated as undirected for deduplication and community
// detection: at most one edge exists per unordered {Source,Target}
// pair within an index.
type Edge struct {
	ID           string `json:"id"`
	Index        string `json:"index"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// Validate checks the fields required for persistence.
func (e *Edge) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Index == "" {
		return ErrEmptyIndex
	}
	if e.Source == "" || e.Target == "" {
		return ErrEmptyEndpoint
	}
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	return nil
}

// SamePair reports whether the edge connects the same unordered node
// pair as (source, target).
func (e *Edge) SamePair(source, target string) bool {
	return (e.Source == source && e.Target == target) ||
		(e.Source == target && e.Target == source)
}

// PairKey returns a direction-insensitive key for the edge's
// endpoints, used to group duplicates.
func (e *Edge) PairKey() string {
	return PairKey(e.Source, e.Target)
}

// PairKey returns a direction-insensitive key for two node ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// MergeRelationships combines two relationship labels without losing
// information: both labels are tokenized on ";", the parts are
// unioned preserving first-seen order, and the result is rejoined
// with "; ".
func MergeRelationships(a, b string) string {
	seen := make(map[string]struct{})
	var parts []string
	for _, raw := range append(splitRelationship(a), splitRelationship(b)...) {
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		parts = append(parts, raw)
	}
	return strings.Join(parts, "; ")
}

// RelationshipContains reports whether label contains part as one of
// its ";"-separated components.
func RelationshipContains(label, part string) bool {
	part = strings.TrimSpace(part)
	for _, p := range splitRelationship(label) {
		if p == part {
			return true
		}
	}
	return false
}

func splitRelationship(label string) []string {
	var parts []string
	for _, p := range strings.Split(label, ";") {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
