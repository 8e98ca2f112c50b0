// Package graphrag implements a GraphRAG retrieval layer: it ingests
// free-form text, extracts a typed knowledge graph with a language
// model, deduplicates entities against the existing graph using exact
// names and vector similarity, detects communities and summarizes
// them hierarchically, and answers questions over a query-relevant
// subgraph assembled by weighted recursive expansion.
package graphrag

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/soundprediction/graphrag/pkg/chunker"
	"github.com/soundprediction/graphrag/pkg/community"
	"github.com/soundprediction/graphrag/pkg/semantic"
	"github.com/soundprediction/graphrag/pkg/store"
	"github.com/soundprediction/graphrag/pkg/vector"
)

var (
	// ErrEmptyIndex is returned when an operation is called without an
	// index name.
	ErrEmptyIndex = errors.New("index must not be empty")
	// ErrEmptyText is returned when ingest is called without text.
	ErrEmptyText = errors.New("text must not be empty")
	// ErrEmptyQuery is returned when search is called without a query.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// SearchConfig tunes retrieval and subgraph expansion.
type SearchConfig struct {
	// SearchLimit is the maximum number of vector hits used to seed a
	// search.
	SearchLimit int
	// SearchMinRelevance is the relevance floor for seed hits.
	SearchMinRelevance float64
	// NodeDepth bounds the number of expansion steps.
	NodeDepth int
	// MaxNodes bounds the subgraph node count.
	MaxNodes int
	// MaxTokens bounds the estimated token size of the subgraph
	// handed to the language model.
	MaxTokens int
}

// DefaultSearchConfig returns the retrieval defaults.
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		SearchLimit:        10,
		SearchMinRelevance: 0.6,
		NodeDepth:          2,
		MaxNodes:           50,
		MaxTokens:          8000,
	}
}

// Engine orchestrates ingest, deduplication, orphan repair, community
// summarization, and subgraph retrieval over one Store, one vector
// Memory, and one semantic Client.
type Engine struct {
	store    store.Store
	memory   vector.Memory
	semantic semantic.Client
	chunker  *chunker.Chunker
	detector *community.Detector
	search   *SearchConfig
	logger   *slog.Logger

	// ingestLocks serializes ingest per index so concurrent ingests
	// cannot create duplicate-name nodes. Values are *sync.Mutex.
	ingestLocks sync.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunker replaces the default text chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(e *Engine) { e.chunker = c }
}

// WithSearchConfig replaces the default retrieval tuning.
func WithSearchConfig(sc *SearchConfig) Option {
	return func(e *Engine) { e.search = sc }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a graph engine.
func NewEngine(s store.Store, memory vector.Memory, sem semantic.Client, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		memory:   memory,
		semantic: sem,
		chunker:  chunker.New(0, 0),
		detector: community.NewDetector(),
		search:   DefaultSearchConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lockIndex acquires the per-index ingest lock.
func (e *Engine) lockIndex(index string) func() {
	v, _ := e.ingestLocks.LoadOrStore(index, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
