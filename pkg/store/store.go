// Package store persists the knowledge graph: nodes, edges,
// community memberships, community summaries and global summaries,
// all scoped by index.
//
// Two adapters satisfy the Store contract: a relational adapter on
// PostgreSQL and a property-graph adapter on Neo4j. Consumers should
// depend on the smallest interface that meets their needs.
package store

import (
	"context"
	"errors"

	"github.com/soundprediction/graphrag/pkg/types"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrIntegrity is returned when a write would violate graph
	// integrity, such as an edge referencing a missing endpoint.
	ErrIntegrity = errors.New("integrity violation")
)

// NodeStore provides node persistence.
type NodeStore interface {
	// GetNode retrieves one node by id within an index.
	GetNode(ctx context.Context, index, id string) (*types.Node, error)

	// GetNodesByIndex retrieves all nodes of an index.
	GetNodesByIndex(ctx context.Context, index string) ([]*types.Node, error)

	// GetNodesByIDs retrieves the nodes of an index whose ids are in
	// ids; missing ids are silently skipped.
	GetNodesByIDs(ctx context.Context, index string, ids []string) ([]*types.Node, error)

	// UpsertNode creates or updates a node.
	UpsertNode(ctx context.Context, node *types.Node) error

	// DeleteNodesByIndex removes every node of an index.
	DeleteNodesByIndex(ctx context.Context, index string) error
}

// EdgeStore provides edge persistence.
type EdgeStore interface {
	// GetEdgesByIndex retrieves all edges of an index.
	GetEdgesByIndex(ctx context.Context, index string) ([]*types.Edge, error)

	// GetEdgesByNodeIDs retrieves the edges of an index with both
	// endpoints in ids.
	GetEdgesByNodeIDs(ctx context.Context, index string, ids []string) ([]*types.Edge, error)

	// InsertEdge persists an edge. Both endpoints must exist in the
	// same index or ErrIntegrity is returned. Adapters may merge the
	// relationship label into an existing edge between the same
	// unordered endpoint pair instead of creating a second edge.
	InsertEdge(ctx context.Context, edge *types.Edge) error

	// UpdateEdge rewrites the relationship label of an existing edge.
	UpdateEdge(ctx context.Context, edge *types.Edge) error

	// DeleteEdge removes one edge by id within an index.
	DeleteEdge(ctx context.Context, index, id string) error

	// DeleteEdgesByIndex removes every edge of an index.
	DeleteEdgesByIndex(ctx context.Context, index string) error
}

// CommunityStore provides community and membership persistence.
type CommunityStore interface {
	// UpsertCommunity creates or updates a community summary record.
	UpsertCommunity(ctx context.Context, community *types.Community) error

	// GetCommunities retrieves all communities of an index.
	GetCommunities(ctx context.Context, index string) ([]*types.Community, error)

	// DeleteCommunitiesByIndex removes every community of an index.
	DeleteCommunitiesByIndex(ctx context.Context, index string) error

	// UpsertMembership assigns a node to a community.
	UpsertMembership(ctx context.Context, membership *types.CommunityMembership) error

	// GetMemberships retrieves all memberships of an index.
	GetMemberships(ctx context.Context, index string) ([]*types.CommunityMembership, error)

	// DeleteMembershipsByIndex removes every membership of an index.
	DeleteMembershipsByIndex(ctx context.Context, index string) error
}

// GlobalStore provides the per-index global summary.
type GlobalStore interface {
	// UpsertGlobal creates or replaces the global summary of an index.
	UpsertGlobal(ctx context.Context, global *types.Global) error

	// GetGlobal retrieves the global summary of an index, or
	// ErrNotFound.
	GetGlobal(ctx context.Context, index string) (*types.Global, error)

	// DeleteGlobalsByIndex removes the global summary of an index.
	DeleteGlobalsByIndex(ctx context.Context, index string) error
}

// Admin provides cross-index operations.
type Admin interface {
	// ListIndices returns the distinct indices that have nodes.
	ListIndices(ctx context.Context) ([]string, error)

	// Close releases all resources held by the adapter.
	Close(ctx context.Context) error
}

// Store is the full repository contract.
type Store interface {
	NodeStore
	EdgeStore
	CommunityStore
	GlobalStore
	Admin
}
