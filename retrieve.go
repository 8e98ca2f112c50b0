package graphrag

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/soundprediction/graphrag/pkg/store"
	"github.com/soundprediction/graphrag/pkg/types"
)

const (
	// frontierCap is how many frontier nodes are expanded per step,
	// picked by descending weight.
	frontierCap = 5
	// discoveredWeightFactor assigns newly discovered nodes a weight
	// relative to the current maximum.
	discoveredWeightFactor = 0.8
	// retryRelevanceDrop widens a sparse seed search by lowering the
	// relevance floor this much, bounded below by retryRelevanceFloor.
	retryRelevanceDrop  = 0.2
	retryRelevanceFloor = 0.3
)

// RetrieveSeeds searches the vector memory for query, widening the
// search once when it comes back nearly empty.
func (e *Engine) RetrieveSeeds(ctx context.Context, index, query string) ([]types.SearchHit, error) {
	hits, err := e.memory.Search(ctx, index, query, e.search.SearchLimit, e.search.SearchMinRelevance)
	if err != nil {
		return nil, err
	}

	if len(hits) < 2 && e.search.SearchMinRelevance > retryRelevanceFloor {
		floor := e.search.SearchMinRelevance - retryRelevanceDrop
		if floor < retryRelevanceFloor {
			floor = retryRelevanceFloor
		}
		more, err := e.memory.Search(ctx, index, query, e.search.SearchLimit+2, floor)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(hits))
		for _, hit := range hits {
			seen[hit.ID] = struct{}{}
		}
		for _, hit := range more {
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			hits = append(hits, hit)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Relevance > hits[j].Relevance })
	return hits, nil
}

// BuildSubgraph expands seed nodes into a bounded subgraph. The
// frontier is pruned to the top weighted nodes each step; nodes
// discovered along the way inherit 0.8 of the current maximum weight.
func (e *Engine) BuildSubgraph(ctx context.Context, index string, seeds []*types.Node, weights map[string]float64) (*types.Subgraph, error) {
	if weights == nil {
		weights = make(map[string]float64)
	}

	nodes := make([]*types.Node, 0, len(seeds))
	nodeIDs := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		if _, dup := nodeIDs[seed.ID]; dup {
			continue
		}
		nodeIDs[seed.ID] = struct{}{}
		nodes = append(nodes, seed)
	}

	var edges []*types.Edge
	edgePairs := make(map[string]struct{})
	frontier := append([]*types.Node{}, nodes...)

	for depth := 0; depth < e.search.NodeDepth && len(nodes) < e.search.MaxNodes && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(frontier) > frontierCap {
			sort.SliceStable(frontier, func(i, j int) bool {
				return weights[frontier[i].ID] > weights[frontier[j].ID]
			})
			frontier = frontier[:frontierCap]
		}

		candidateIDs := make([]string, 0, len(nodes)+len(frontier))
		inCandidates := make(map[string]struct{}, len(nodes)+len(frontier))
		for _, n := range nodes {
			candidateIDs = append(candidateIDs, n.ID)
			inCandidates[n.ID] = struct{}{}
		}
		for _, n := range frontier {
			if _, dup := inCandidates[n.ID]; !dup {
				candidateIDs = append(candidateIDs, n.ID)
				inCandidates[n.ID] = struct{}{}
			}
		}

		newEdges, err := e.store.GetEdgesByNodeIDs(ctx, index, candidateIDs)
		if err != nil {
			return nil, err
		}

		newIDSet := make(map[string]struct{})
		for _, edge := range newEdges {
			if _, dup := edgePairs[edge.PairKey()]; dup {
				continue
			}
			edgePairs[edge.PairKey()] = struct{}{}
			edges = append(edges, edge)
			for _, endpoint := range []string{edge.Source, edge.Target} {
				if _, known := nodeIDs[endpoint]; !known {
					newIDSet[endpoint] = struct{}{}
				}
			}
		}
		if len(newIDSet) == 0 {
			break
		}

		newIDs := make([]string, 0, len(newIDSet))
		for id := range newIDSet {
			newIDs = append(newIDs, id)
		}
		sort.Strings(newIDs)

		discovered, err := e.store.GetNodesByIDs(ctx, index, newIDs)
		if err != nil {
			return nil, err
		}

		maxWeight := 0.0
		for _, w := range weights {
			if w > maxWeight {
				maxWeight = w
			}
		}
		for _, node := range discovered {
			if _, ok := weights[node.ID]; !ok {
				weights[node.ID] = discoveredWeightFactor * maxWeight
			}
			nodeIDs[node.ID] = struct{}{}
			nodes = append(nodes, node)
		}
		frontier = discovered
	}

	if len(nodes) > e.search.MaxNodes {
		sort.SliceStable(nodes, func(i, j int) bool {
			return weights[nodes[i].ID] > weights[nodes[j].ID]
		})
		nodes = nodes[:e.search.MaxNodes]
		keep := make(map[string]struct{}, len(nodes))
		for _, n := range nodes {
			keep[n.ID] = struct{}{}
		}
		trimmed := edges[:0]
		for _, edge := range edges {
			if _, ok := keep[edge.Source]; !ok {
				continue
			}
			if _, ok := keep[edge.Target]; !ok {
				continue
			}
			trimmed = append(trimmed, edge)
		}
		edges = trimmed
	}

	return &types.Subgraph{Nodes: nodes, Edges: edges}, nil
}

// querySubgraph retrieves, expands, and truncates the subgraph for a
// query. An empty subgraph means nothing relevant was indexed.
func (e *Engine) querySubgraph(ctx context.Context, index, query string) (*types.Subgraph, error) {
	hits, err := e.RetrieveSeeds(ctx, index, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &types.Subgraph{}, nil
	}

	weights := make(map[string]float64, len(hits))
	seedIDs := make([]string, 0, len(hits))
	for _, hit := range hits {
		weights[hit.ID] = hit.Relevance
		seedIDs = append(seedIDs, hit.ID)
	}

	seeds, err := e.store.GetNodesByIDs(ctx, index, seedIDs)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return &types.Subgraph{}, nil
	}

	graph, err := e.BuildSubgraph(ctx, index, seeds, weights)
	if err != nil {
		return nil, err
	}
	return truncateToBudget(graph, weights, e.search.MaxTokens), nil
}

func subgraphJSON(graph *types.Subgraph) (string, error) {
	raw, err := json.Marshal(graph)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SearchGraph answers a question over the query-relevant subgraph of
// an index. An empty index or no relevant nodes yields an empty
// answer without calling the language model.
func (e *Engine) SearchGraph(ctx context.Context, index, query string) (string, error) {
	if index == "" {
		return "", ErrEmptyIndex
	}
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	graph, err := e.querySubgraph(ctx, index, query)
	if err != nil {
		return "", err
	}
	if len(graph.Nodes) == 0 {
		return "", nil
	}

	raw, err := subgraphJSON(graph)
	if err != nil {
		return "", err
	}
	e.logger.Debug("answering over subgraph",
		"index", index, "nodes", len(graph.Nodes), "edges", len(graph.Edges))
	return e.semantic.Answer(ctx, raw, query, "")
}

// SearchGraphStream is the streaming variant of SearchGraph; fn is
// invoked once per answer fragment. An empty subgraph yields no
// fragments and no model call.
func (e *Engine) SearchGraphStream(ctx context.Context, index, query string, fn func(fragment string) error) error {
	if index == "" {
		return ErrEmptyIndex
	}
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}

	graph, err := e.querySubgraph(ctx, index, query)
	if err != nil {
		return err
	}
	if len(graph.Nodes) == 0 {
		return nil
	}

	raw, err := subgraphJSON(graph)
	if err != nil {
		return err
	}
	return e.semantic.AnswerStream(ctx, raw, query, "", fn)
}

// SearchGraphCommunity answers like SearchGraph but prepends the
// community and global summaries of the index as extra context.
func (e *Engine) SearchGraphCommunity(ctx context.Context, index, query string) (string, error) {
	if index == "" {
		return "", ErrEmptyIndex
	}
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	graph, err := e.querySubgraph(ctx, index, query)
	if err != nil {
		return "", err
	}
	if len(graph.Nodes) == 0 {
		return "", nil
	}

	var extra strings.Builder
	if global, err := e.store.GetGlobal(ctx, index); err == nil {
		extra.WriteString("Corpus summary:\n")
		extra.WriteString(global.Summaries)
		extra.WriteString("\n\n")
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	communities, err := e.store.GetCommunities(ctx, index)
	if err != nil {
		return "", err
	}
	if len(communities) > 0 {
		extra.WriteString("Community summaries:\n")
		for _, c := range communities {
			extra.WriteString(c.Summaries)
			extra.WriteString("\n")
		}
	}

	raw, err := subgraphJSON(graph)
	if err != nil {
		return "", err
	}
	return e.semantic.Answer(ctx, raw, query, extra.String())
}
