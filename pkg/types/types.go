package types

// CommunityMembership assigns a node to a community within an index.
// Memberships are wiped and recreated by every community rebuild;
// CommunityID is not stable across rebuilds.
type CommunityMembership struct {
	Index       string `json:"index"`
	CommunityID string `json:"communityId"`
	NodeID      string `json:"nodeId"`
}

// Community holds the summary for one detected community.
type Community struct {
	CommunityID string `json:"communityId"`
	Index       string `json:"index"`
	Summaries   string `json:"summaries"`
}

// Global holds the per-index summary synthesized from all community
// summaries. At most one exists per index.
type Global struct {
	Index     string `json:"index"`
	Summaries string `json:"summaries"`
}

// ExtractedNode is one entity proposed by the language model for a
// single chunk of text. LocalID is only meaningful within that one
// extraction call.
type ExtractedNode struct {
	LocalID string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Desc    string `json:"desc"`
}

// ExtractedEdge is one relation proposed by the language model,
// referencing nodes of the same extraction by local id.
type ExtractedEdge struct {
	SourceLocalID string `json:"source"`
	TargetLocalID string `json:"target"`
	Relationship  string `json:"relationship"`
}

// ExtractedGraph is the structured output of a single extraction call.
type ExtractedGraph struct {
	Nodes []ExtractedNode `json:"nodes"`
	Edges []ExtractedEdge `json:"edges"`
}

// RelationSource selects which of the two descriptions passed to
// relation inference acts as the edge source.
type RelationSource string

const (
	// RelationSourceFirst means the first description is the source.
	RelationSourceFirst RelationSource = "node1"
	// RelationSourceSecond means the second description is the source.
	RelationSourceSecond RelationSource = "node2"
)

// RelationInference is the language model's judgement about whether
// two node descriptions are related, and in which direction.
type RelationInference struct {
	Related      bool           `json:"related"`
	Source       RelationSource `json:"source"`
	Relationship string         `json:"relationship"`
}

// Subgraph is a query-relevant slice of an index's graph, handed to
// the language model as answer context.
type Subgraph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// SearchHit is one vector memory result.
type SearchHit struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}
