// Package embedder provides text embedding clients for vector
// representations.
//
// The Client interface supports batch embedding; implementations
// handle provider batch limits internally.
package embedder

import "context"

// Client generates embeddings for text.
type Client interface {
	// Embed generates embeddings for the given texts, one vector per
	// input in the same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int
}

// Config holds settings shared by embedding providers.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	BatchSize  int
}
