// Package community detects graph communities with fast label
// propagation over an undirected view of the edge set.
package community

import (
	"sort"

	"github.com/soundprediction/graphrag/pkg/types"
)

// maxIterations bounds the propagation loop against oscillation.
const maxIterations = 100000

// Detector runs fast label propagation. Detection is deterministic
// for a fixed input graph: the active queue is processed in insertion
// order and label ties break toward the smallest label string.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns a map from node id to community label for every
// non-isolated node. Isolated nodes (degree zero) are omitted; their
// label would be their own id and they never form a community.
func (d *Detector) Detect(edges []*types.Edge) map[string]string {
	adjacency := buildAdjacency(edges)
	if len(adjacency) == 0 {
		return map[string]string{}
	}

	labels := make(map[string]string, len(adjacency))
	for id := range adjacency {
		labels[id] = id
	}

	// Active set doubles as a FIFO queue; enqueued tracks membership
	// so a node is never queued twice.
	ids := make([]string, 0, len(adjacency))
	for id := range adjacency {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	queue := make([]string, len(ids))
	copy(queue, ids)
	enqueued := make(map[string]bool, len(ids))
	for _, id := range ids {
		enqueued[id] = true
	}

	for iter := 0; len(queue) > 0 && iter < maxIterations; iter++ {
		v := queue[0]
		queue = queue[1:]
		enqueued[v] = false

		best := dominantLabel(adjacency[v], labels)
		if best == "" || best == labels[v] {
			continue
		}
		labels[v] = best

		for _, nb := range adjacency[v] {
			if labels[nb] != best && !enqueued[nb] {
				queue = append(queue, nb)
				enqueued[nb] = true
			}
		}
	}

	return labels
}

// dominantLabel returns the most frequent label among neighbors,
// breaking ties by the smallest label string.
func dominantLabel(neighbors []string, labels map[string]string) string {
	counts := make(map[string]int, len(neighbors))
	for _, nb := range neighbors {
		counts[labels[nb]]++
	}

	best := ""
	bestCount := 0
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best = label
			bestCount = count
		}
	}
	return best
}

// buildAdjacency creates the undirected adjacency map, dropping
// self-loops and keeping duplicate pair edges as extra weight-free
// entries collapsed to one.
func buildAdjacency(edges []*types.Edge) map[string][]string {
	type pair struct{ a, b string }
	seen := make(map[pair]struct{}, len(edges))
	adjacency := make(map[string][]string)

	for _, e := range edges {
		if e.Source == e.Target || e.Source == "" || e.Target == "" {
			continue
		}
		a, b := e.Source, e.Target
		if b < a {
			a, b = b, a
		}
		if _, dup := seen[pair{a, b}]; dup {
			continue
		}
		seen[pair{a, b}] = struct{}{}
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}

	// Deterministic neighbor order keeps dominantLabel stable when
	// counts tie through map iteration.
	for id := range adjacency {
		sort.Strings(adjacency[id])
	}
	return adjacency
}
