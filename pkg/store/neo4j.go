package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/graphrag/pkg/types"
)

// Neo4jStore implements Store on Neo4j. Nodes carry the Node label;
// edges are RELATES_TO relationships whose direction always runs from
// the lexicographically smaller endpoint, with a reversed property
// recording the authored direction.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string

	constraintOnce sync.Once
	constraintErr  error
}

// NewNeo4jStore creates a Neo4j-backed store.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jStore{
		client:   driver,
		database: database,
	}, nil
}

func (n *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

func (n *Neo4jStore) ensureConstraints(ctx context.Context) error {
	n.constraintOnce.Do(func() {
		session := n.session(ctx)
		defer session.Close(ctx)

		_, n.constraintErr = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx,
				`CREATE CONSTRAINT node_id_unique IF NOT EXISTS FOR (n:Node) REQUIRE n.id IS UNIQUE`,
				nil)
			return nil, err
		})
	})
	return n.constraintErr
}

func isRetryableNeo4j(err error) bool {
	return neo4j.IsRetryable(err) || isNetworkError(err)
}

func nodeFromDBNode(v dbtype.Node) *types.Node {
	get := func(key string) string {
		s, _ := v.Props[key].(string)
		return s
	}
	return &types.Node{
		ID:    get("id"),
		Index: get("index"),
		Name:  get("name"),
		Type:  get("type"),
		Desc:  get("desc"),
	}
}

func edgeFromRecord(record *db.Record) (*types.Edge, error) {
	relValue, found := record.Get("r")
	if !found {
		return nil, fmt.Errorf("record has no relationship")
	}
	rel, ok := relValue.(dbtype.Relationship)
	if !ok {
		return nil, fmt.Errorf("unexpected type for relationship: %T", relValue)
	}
	get := func(key string) string {
		s, _ := rel.Props[key].(string)
		return s
	}
	sourceID, _ := record.Get("sourceID")
	targetID, _ := record.Get("targetID")
	source, _ := sourceID.(string)
	target, _ := targetID.(string)
	if reversed, _ := rel.Props["reversed"].(bool); reversed {
		source, target = target, source
	}
	return &types.Edge{
		ID:           get("id"),
		Index:        get("index"),
		Source:       source,
		Target:       target,
		Relationship: get("relationship"),
	}, nil
}

// GetNode retrieves one node by id within an index.
func (n *Neo4jStore) GetNode(ctx context.Context, index, id string) (*types.Node, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (n:Node {id: $id, index: $index}) RETURN n`,
			map[string]any{"id": id, "index": index})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrNotFound
		}
		return records[0], nil
	})
	if err != nil {
		return nil, err
	}

	record := result.(*db.Record)
	nodeValue, found := record.Get("n")
	if !found {
		return nil, ErrNotFound
	}
	dbNode, ok := nodeValue.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected type for node: %T", nodeValue)
	}
	return nodeFromDBNode(dbNode), nil
}

func (n *Neo4jStore) readNodes(ctx context.Context, query string, params map[string]any) ([]*types.Node, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	nodes := make([]*types.Node, 0, len(records))
	for _, record := range records {
		nodeValue, found := record.Get("n")
		if !found {
			continue
		}
		dbNode, ok := nodeValue.(dbtype.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected type for node: %T", nodeValue)
		}
		nodes = append(nodes, nodeFromDBNode(dbNode))
	}
	return nodes, nil
}

// GetNodesByIndex retrieves all nodes of an index.
func (n *Neo4jStore) GetNodesByIndex(ctx context.Context, index string) ([]*types.Node, error) {
	return n.readNodes(ctx,
		`MATCH (n:Node {index: $index}) RETURN n ORDER BY n.name`,
		map[string]any{"index": index})
}

// GetNodesByIDs retrieves nodes of an index by id.
func (n *Neo4jStore) GetNodesByIDs(ctx context.Context, index string, ids []string) ([]*types.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return n.readNodes(ctx,
		`MATCH (n:Node {index: $index}) WHERE n.id IN $ids RETURN n`,
		map[string]any{"index": index, "ids": ids})
}

// UpsertNode creates or updates a node.
func (n *Neo4jStore) UpsertNode(ctx context.Context, node *types.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if err := n.ensureConstraints(ctx); err != nil {
		return err
	}

	return retryTransient(ctx, isRetryableNeo4j, func() error {
		session := n.session(ctx)
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, `
				MERGE (n:Node {id: $id, index: $index})
				SET n.name = $name, n.type = $type, n.desc = $desc
			`, map[string]any{
				"id":    node.ID,
				"index": node.Index,
				"name":  node.Name,
				"type":  node.Type,
				"desc":  node.Desc,
			})
			return nil, err
		})
		return err
	})
}

// DeleteNodesByIndex removes every node of an index and its edges.
func (n *Neo4jStore) DeleteNodesByIndex(ctx context.Context, index string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MATCH (n:Node {index: $index}) DETACH DELETE n`,
			map[string]any{"index": index})
		return nil, err
	})
	return err
}

func (n *Neo4jStore) readEdges(ctx context.Context, query string, params map[string]any) ([]*types.Edge, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	edges := make([]*types.Edge, 0, len(records))
	for _, record := range records {
		edge, err := edgeFromRecord(record)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// GetEdgesByIndex retrieves all edges of an index.
func (n *Neo4jStore) GetEdgesByIndex(ctx context.Context, index string) ([]*types.Edge, error) {
	return n.readEdges(ctx, `
		MATCH (a:Node)-[r:RELATES_TO {index: $index}]->(b:Node)
		RETURN r, a.id AS sourceID, b.id AS targetID
	`, map[string]any{"index": index})
}

// GetEdgesByNodeIDs retrieves the edges of an index with both
// endpoints in ids.
func (n *Neo4jStore) GetEdgesByNodeIDs(ctx context.Context, index string, ids []string) ([]*types.Edge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return n.readEdges(ctx, `
		MATCH (a:Node)-[r:RELATES_TO {index: $index}]->(b:Node)
		WHERE a.id IN $ids AND b.id IN $ids
		RETURN r, a.id AS sourceID, b.id AS targetID
	`, map[string]any{"index": index, "ids": ids})
}

// InsertEdge persists an edge. An existing edge between the same
// unordered endpoint pair absorbs the new relationship label instead
// of producing a parallel edge. Missing endpoints yield ErrIntegrity.
func (n *Neo4jStore) InsertEdge(ctx context.Context, edge *types.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	return retryTransient(ctx, isRetryableNeo4j, func() error {
		session := n.session(ctx)
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, `
				MATCH (a:Node {id: $source, index: $index})
				MATCH (b:Node {id: $target, index: $index})
				OPTIONAL MATCH (a)-[r:RELATES_TO {index: $index}]-(b)
				RETURN r
			`, map[string]any{
				"source": edge.Source,
				"target": edge.Target,
				"index":  edge.Index,
			})
			if err != nil {
				return nil, err
			}
			records, err := res.Collect(ctx)
			if err != nil {
				return nil, err
			}
			if len(records) == 0 {
				return nil, fmt.Errorf("%w: edge %s -> %s references a missing node", ErrIntegrity, edge.Source, edge.Target)
			}

			if relValue, found := records[0].Get("r"); found && relValue != nil {
				rel, ok := relValue.(dbtype.Relationship)
				if !ok {
					return nil, fmt.Errorf("unexpected type for relationship: %T", relValue)
				}
				existing, _ := rel.Props["relationship"].(string)
				merged := types.MergeRelationships(existing, edge.Relationship)
				if merged == existing {
					return nil, nil
				}
				existingID, _ := rel.Props["id"].(string)
				_, err = tx.Run(ctx, `
					MATCH ()-[r:RELATES_TO {id: $id, index: $index}]-()
					SET r.relationship = $relationship
				`, map[string]any{
					"id":           existingID,
					"index":        edge.Index,
					"relationship": merged,
				})
				return nil, err
			}

			id := edge.ID
			reversed := false
			if id == "" {
				id, reversed = NormalizedEdgeID(edge.Source, edge.Target, edge.Relationship, edge.Index)
			}
			low, high := edge.Source, edge.Target
			if reversed {
				low, high = high, low
			}
			_, err = tx.Run(ctx, `
				MATCH (a:Node {id: $low, index: $index})
				MATCH (b:Node {id: $high, index: $index})
				CREATE (a)-[:RELATES_TO {id: $id, index: $index, relationship: $relationship, reversed: $reversed}]->(b)
			`, map[string]any{
				"low":          low,
				"high":         high,
				"index":        edge.Index,
				"id":           id,
				"relationship": edge.Relationship,
				"reversed":     reversed,
			})
			return nil, err
		})
		return err
	})
}

// UpdateEdge rewrites the relationship label of an existing edge.
func (n *Neo4jStore) UpdateEdge(ctx context.Context, edge *types.Edge) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH ()-[r:RELATES_TO {id: $id, index: $index}]-()
			SET r.relationship = $relationship
			RETURN count(r) AS updated
		`, map[string]any{
			"id":           edge.ID,
			"index":        edge.Index,
			"relationship": edge.Relationship,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		updated, _ := record.Get("updated")
		return updated, nil
	})
	if err != nil {
		return err
	}
	if count, ok := result.(int64); ok && count == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEdge removes one edge by id within an index.
func (n *Neo4jStore) DeleteEdge(ctx context.Context, index, id string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MATCH ()-[r:RELATES_TO {id: $id, index: $index}]-() DELETE r`,
			map[string]any{"id": id, "index": index})
		return nil, err
	})
	return err
}

// DeleteEdgesByIndex removes every edge of an index.
func (n *Neo4jStore) DeleteEdgesByIndex(ctx context.Context, index string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MATCH ()-[r:RELATES_TO {index: $index}]-() DELETE r`,
			map[string]any{"index": index})
		return nil, err
	})
	return err
}

// UpsertCommunity creates or updates a community summary record.
func (n *Neo4jStore) UpsertCommunity(ctx context.Context, community *types.Community) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (c:Community {community_id: $communityID, index: $index})
			SET c.summaries = $summaries
		`, map[string]any{
			"communityID": community.CommunityID,
			"index":       community.Index,
			"summaries":   community.Summaries,
		})
		return nil, err
	})
	return err
}

// GetCommunities retrieves all communities of an index.
func (n *Neo4jStore) GetCommunities(ctx context.Context, index string) ([]*types.Community, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (c:Community {index: $index}) RETURN c.community_id AS communityID, c.summaries AS summaries`,
			map[string]any{"index": index})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	communities := make([]*types.Community, 0, len(records))
	for _, record := range records {
		communityID, _ := record.Get("communityID")
		summaries, _ := record.Get("summaries")
		c := &types.Community{Index: index}
		c.CommunityID, _ = communityID.(string)
		c.Summaries, _ = summaries.(string)
		communities = append(communities, c)
	}
	return communities, nil
}

// DeleteCommunitiesByIndex removes every community of an index.
func (n *Neo4jStore) DeleteCommunitiesByIndex(ctx context.Context, index string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MATCH (c:Community {index: $index}) DETACH DELETE c`,
			map[string]any{"index": index})
		return nil, err
	})
	return err
}

// UpsertMembership assigns a node to a community via a MEMBER_OF
// relationship from the node to the community record.
func (n *Neo4jStore) UpsertMembership(ctx context.Context, membership *types.CommunityMembership) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Node {id: $nodeID, index: $index})
			MERGE (c:Community {community_id: $communityID, index: $index})
			MERGE (n)-[m:MEMBER_OF]->(c)
			RETURN count(m) AS linked
		`, map[string]any{
			"nodeID":      membership.NodeID,
			"index":       membership.Index,
			"communityID": membership.CommunityID,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		linked, _ := record.Get("linked")
		return linked, nil
	})
	if err != nil {
		return err
	}
	if count, ok := result.(int64); ok && count == 0 {
		return fmt.Errorf("%w: membership references missing node %s", ErrIntegrity, membership.NodeID)
	}
	return nil
}

// GetMemberships retrieves all memberships of an index.
func (n *Neo4jStore) GetMemberships(ctx context.Context, index string) ([]*types.CommunityMembership, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Node {index: $index})-[:MEMBER_OF]->(c:Community {index: $index})
			RETURN n.id AS nodeID, c.community_id AS communityID
		`, map[string]any{"index": index})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	memberships := make([]*types.CommunityMembership, 0, len(records))
	for _, record := range records {
		nodeID, _ := record.Get("nodeID")
		communityID, _ := record.Get("communityID")
		m := &types.CommunityMembership{Index: index}
		m.NodeID, _ = nodeID.(string)
		m.CommunityID, _ = communityID.(string)
		memberships = append(memberships, m)
	}
	return memberships, nil
}

// DeleteMembershipsByIndex removes every membership of an index.
func (n *Neo4jStore) DeleteMembershipsByIndex(ctx context.Context, index string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MATCH (:Node {index: $index})-[m:MEMBER_OF]->(:Community {index: $index}) DELETE m`,
			map[string]any{"index": index})
		return nil, err
	})
	return err
}

// UpsertGlobal creates or replaces the global summary of an index.
func (n *Neo4jStore) UpsertGlobal(ctx context.Context, global *types.Global) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (g:Global {index: $index})
			SET g.summaries = $summaries
		`, map[string]any{
			"index":     global.Index,
			"summaries": global.Summaries,
		})
		return nil, err
	})
	return err
}

// GetGlobal retrieves the global summary of an index.
func (n *Neo4jStore) GetGlobal(ctx context.Context, index string) (*types.Global, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (g:Global {index: $index}) RETURN g.summaries AS summaries`,
			map[string]any{"index": index})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrNotFound
		}
		return records[0], nil
	})
	if err != nil {
		return nil, err
	}

	record := result.(*db.Record)
	summaries, _ := record.Get("summaries")
	g := &types.Global{Index: index}
	g.Summaries, _ = summaries.(string)
	return g, nil
}

// DeleteGlobalsByIndex removes the global summary of an index.
func (n *Neo4jStore) DeleteGlobalsByIndex(ctx context.Context, index string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MATCH (g:Global {index: $index}) DELETE g`,
			map[string]any{"index": index})
		return nil, err
	})
	return err
}

// ListIndices returns the distinct indices that have nodes.
func (n *Neo4jStore) ListIndices(ctx context.Context) ([]string, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (n:Node) RETURN DISTINCT n.index AS index ORDER BY index`, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	indices := make([]string, 0, len(records))
	for _, record := range records {
		v, _ := record.Get("index")
		if s, ok := v.(string); ok {
			indices = append(indices, s)
		}
	}
	return indices, nil
}

// Close releases the underlying driver.
func (n *Neo4jStore) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

var _ Store = (*Neo4jStore)(nil)
