// Package semantic wraps the language model behind the typed
// operations the graph engine needs: graph extraction, description
// merging, relation inference, summarization, and question answering.
package semantic

import (
	"context"

	"github.com/soundprediction/graphrag/pkg/types"
)

// Client is the semantic capability set used by the engine. Any
// failure is reported to the caller; the engine decides whether it is
// recoverable.
type Client interface {
	// ExtractGraph extracts a typed entity-relation graph from text.
	ExtractGraph(ctx context.Context, text string) (*types.ExtractedGraph, error)

	// MergeDescriptions synthesizes one description from two. An
	// empty result is valid; callers fall back to concatenation.
	MergeDescriptions(ctx context.Context, a, b string) (string, error)

	// InferRelation decides whether two node descriptions are related
	// and in which direction.
	InferRelation(ctx context.Context, descA, descB string) (*types.RelationInference, error)

	// SummarizeCommunity summarizes the concatenated member
	// descriptions of one community.
	SummarizeCommunity(ctx context.Context, memberDescriptions string) (string, error)

	// SummarizeGlobal synthesizes the concatenated community
	// summaries into one corpus-level summary.
	SummarizeGlobal(ctx context.Context, communitySummaries string) (string, error)

	// Answer answers a question given a subgraph as JSON, with
	// optional extra context prepended.
	Answer(ctx context.Context, subgraphJSON, question, extraContext string) (string, error)

	// AnswerStream is the streaming variant of Answer; fn is invoked
	// once per response fragment. Each call starts a fresh stream.
	AnswerStream(ctx context.Context, subgraphJSON, question, extraContext string, fn func(fragment string) error) error
}
