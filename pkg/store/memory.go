package store

import (
	"context"
	"sort"
	"sync"

	"github.com/soundprediction/graphrag/pkg/types"
)

// MemoryStore is an in-process Store for development and tests. All
// data lives in maps guarded by one RWMutex; nothing survives a
// restart.
type MemoryStore struct {
	mu          sync.RWMutex
	nodes       map[string]map[string]*types.Node // index -> id -> node
	edges       map[string]map[string]*types.Edge // index -> id -> edge
	communities map[string]map[string]*types.Community
	memberships map[string][]*types.CommunityMembership
	globals     map[string]*types.Global
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:       make(map[string]map[string]*types.Node),
		edges:       make(map[string]map[string]*types.Edge),
		communities: make(map[string]map[string]*types.Community),
		memberships: make(map[string][]*types.CommunityMembership),
		globals:     make(map[string]*types.Global),
	}
}

// GetNode retrieves one node by id within an index.
func (m *MemoryStore) GetNode(ctx context.Context, index, id string) (*types.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[index][id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *node
	return &copied, nil
}

// GetNodesByIndex retrieves all nodes of an index.
func (m *MemoryStore) GetNodesByIndex(ctx context.Context, index string) ([]*types.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]*types.Node, 0, len(m.nodes[index]))
	for _, node := range m.nodes[index] {
		copied := *node
		nodes = append(nodes, &copied)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// GetNodesByIDs retrieves nodes of an index by id; missing ids are
// skipped.
func (m *MemoryStore) GetNodesByIDs(ctx context.Context, index string, ids []string) ([]*types.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]*types.Node, 0, len(ids))
	for _, id := range ids {
		if node, ok := m.nodes[index][id]; ok {
			copied := *node
			nodes = append(nodes, &copied)
		}
	}
	return nodes, nil
}

// UpsertNode creates or updates a node.
func (m *MemoryStore) UpsertNode(ctx context.Context, node *types.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nodes[node.Index] == nil {
		m.nodes[node.Index] = make(map[string]*types.Node)
	}
	copied := *node
	m.nodes[node.Index][node.ID] = &copied
	return nil
}

// DeleteNodesByIndex removes every node of an index.
func (m *MemoryStore) DeleteNodesByIndex(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.nodes, index)
	return nil
}

// GetEdgesByIndex retrieves all edges of an index.
func (m *MemoryStore) GetEdgesByIndex(ctx context.Context, index string) ([]*types.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	edges := make([]*types.Edge, 0, len(m.edges[index]))
	for _, edge := range m.edges[index] {
		copied := *edge
		edges = append(edges, &copied)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

// GetEdgesByNodeIDs retrieves the edges of an index with both
// endpoints in ids.
func (m *MemoryStore) GetEdgesByNodeIDs(ctx context.Context, index string, ids []string) ([]*types.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var edges []*types.Edge
	for _, edge := range m.edges[index] {
		if _, ok := wanted[edge.Source]; !ok {
			continue
		}
		if _, ok := wanted[edge.Target]; !ok {
			continue
		}
		copied := *edge
		edges = append(edges, &copied)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

// InsertEdge persists an edge, merging the relationship label into an
// existing edge between the same unordered endpoint pair.
func (m *MemoryStore) InsertEdge(ctx context.Context, edge *types.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[edge.Index][edge.Source]; !ok {
		return ErrIntegrity
	}
	if _, ok := m.nodes[edge.Index][edge.Target]; !ok {
		return ErrIntegrity
	}

	for _, existing := range m.edges[edge.Index] {
		if existing.SamePair(edge.Source, edge.Target) {
			existing.Relationship = types.MergeRelationships(existing.Relationship, edge.Relationship)
			return nil
		}
	}

	copied := *edge
	if copied.ID == "" {
		copied.ID, _ = NormalizedEdgeID(copied.Source, copied.Target, copied.Relationship, copied.Index)
	}
	if m.edges[edge.Index] == nil {
		m.edges[edge.Index] = make(map[string]*types.Edge)
	}
	m.edges[edge.Index][copied.ID] = &copied
	return nil
}

// UpdateEdge rewrites the relationship label of an existing edge.
func (m *MemoryStore) UpdateEdge(ctx context.Context, edge *types.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.edges[edge.Index][edge.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Relationship = edge.Relationship
	return nil
}

// DeleteEdge removes one edge by id within an index.
func (m *MemoryStore) DeleteEdge(ctx context.Context, index, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.edges[index], id)
	return nil
}

// DeleteEdgesByIndex removes every edge of an index.
func (m *MemoryStore) DeleteEdgesByIndex(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.edges, index)
	return nil
}

// UpsertCommunity creates or updates a community summary record.
func (m *MemoryStore) UpsertCommunity(ctx context.Context, community *types.Community) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.communities[community.Index] == nil {
		m.communities[community.Index] = make(map[string]*types.Community)
	}
	copied := *community
	m.communities[community.Index][community.CommunityID] = &copied
	return nil
}

// GetCommunities retrieves all communities of an index.
func (m *MemoryStore) GetCommunities(ctx context.Context, index string) ([]*types.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	communities := make([]*types.Community, 0, len(m.communities[index]))
	for _, c := range m.communities[index] {
		copied := *c
		communities = append(communities, &copied)
	}
	sort.Slice(communities, func(i, j int) bool { return communities[i].CommunityID < communities[j].CommunityID })
	return communities, nil
}

// DeleteCommunitiesByIndex removes every community of an index.
func (m *MemoryStore) DeleteCommunitiesByIndex(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.communities, index)
	return nil
}

// UpsertMembership assigns a node to a community.
func (m *MemoryStore) UpsertMembership(ctx context.Context, membership *types.CommunityMembership) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.memberships[membership.Index] {
		if existing.NodeID == membership.NodeID && existing.CommunityID == membership.CommunityID {
			return nil
		}
	}
	copied := *membership
	m.memberships[membership.Index] = append(m.memberships[membership.Index], &copied)
	return nil
}

// GetMemberships retrieves all memberships of an index.
func (m *MemoryStore) GetMemberships(ctx context.Context, index string) ([]*types.CommunityMembership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	memberships := make([]*types.CommunityMembership, 0, len(m.memberships[index]))
	for _, ms := range m.memberships[index] {
		copied := *ms
		memberships = append(memberships, &copied)
	}
	return memberships, nil
}

// DeleteMembershipsByIndex removes every membership of an index.
func (m *MemoryStore) DeleteMembershipsByIndex(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.memberships, index)
	return nil
}

// UpsertGlobal creates or replaces the global summary of an index.
func (m *MemoryStore) UpsertGlobal(ctx context.Context, global *types.Global) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *global
	m.globals[global.Index] = &copied
	return nil
}

// GetGlobal retrieves the global summary of an index.
func (m *MemoryStore) GetGlobal(ctx context.Context, index string) (*types.Global, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.globals[index]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *g
	return &copied, nil
}

// DeleteGlobalsByIndex removes the global summary of an index.
func (m *MemoryStore) DeleteGlobalsByIndex(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.globals, index)
	return nil
}

// ListIndices returns the distinct indices that have nodes.
func (m *MemoryStore) ListIndices(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	indices := make([]string, 0, len(m.nodes))
	for index, nodes := range m.nodes {
		if len(nodes) > 0 {
			indices = append(indices, index)
		}
	}
	sort.Strings(indices)
	return indices, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
