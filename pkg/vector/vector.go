// Package vector provides the embedding-backed nearest-neighbour
// memory over node description strings.
//
// Relevance scores are in [0,1]; 1.0 is reserved for exact semantic
// identity and is what the ingest dedup path keys on.
package vector

import (
	"context"
	"math"

	"github.com/soundprediction/graphrag/pkg/types"
)

// identityScore is the floor above which a similarity score is
// normalized to exactly 1.0, so callers can test identity with a
// plain comparison.
const identityScore = 0.9999

// Memory stores (index, id, text) records with their embedding and
// answers nearest-neighbour queries.
type Memory interface {
	// Save upserts the embedding for id in index.
	Save(ctx context.Context, index, id, text string) error

	// Search returns up to limit hits with relevance >= minRelevance,
	// ordered by descending relevance.
	Search(ctx context.Context, index, query string, limit int, minRelevance float64) ([]types.SearchHit, error)

	// Remove deletes the record for id in index. Removing a missing
	// id is not an error.
	Remove(ctx context.Context, index, id string) error
}

// CosineSimilarity calculates the cosine similarity between two
// float32 vectors. Returns 0 if the vectors have different lengths,
// are empty, or either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// normalizeScore clamps a similarity score into [0,1] and snaps
// near-identical scores to exactly 1.0.
func normalizeScore(score float64) float64 {
	if score >= identityScore {
		return 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}
