package embedder

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultBatchSize      = 100
	defaultDimensions     = 1536
)

// OpenAIClient implements Client against the OpenAI embeddings API or
// any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates an OpenAI embedding client.
func NewOpenAIClient(config Config) *OpenAIClient {
	if config.Model == "" {
		config.Model = defaultEmbeddingModel
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.Dimensions <= 0 {
		config.Dimensions = defaultDimensions
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Embed generates embeddings for the given texts, batching requests
// to the provider limit.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(c.config.Model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: requested %d, got %d", end-start, len(resp.Data))
		}
		for _, d := range resp.Data {
			embeddings = append(embeddings, d.Embedding)
		}
	}
	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *OpenAIClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimensionality.
func (c *OpenAIClient) Dimensions() int {
	return c.config.Dimensions
}
