package graphrag

import (
	"sort"

	"github.com/soundprediction/graphrag/pkg/types"
)

const (
	// subgraphBaseTokens is the fixed overhead charged for the answer
	// prompt scaffolding around the subgraph JSON.
	subgraphBaseTokens = 200
	// nodeOverheadTokens is the per-node JSON overhead.
	nodeOverheadTokens = 15
	// edgeTokens is the flat per-edge estimate.
	edgeTokens = 10
	// truncateSlack keeps the truncated estimate at 90% of the budget
	// so estimator drift does not blow the real limit.
	truncateSlack = 0.9
)

// EstimateTokens approximates the token cost of serializing a
// subgraph for the language model. CJK code points count as one token
// each; other description runes count 0.75; ids and names are charged
// one token per three bytes.
func EstimateTokens(graph *types.Subgraph) int {
	if graph == nil {
		return subgraphBaseTokens
	}
	total := subgraphBaseTokens
	for _, node := range graph.Nodes {
		total += nodeTokens(node)
	}
	total += edgeTokens * len(graph.Edges)
	return total
}

func nodeTokens(node *types.Node) int {
	chinese, other := 0, 0
	for _, r := range node.Desc {
		if r >= 0x4E00 && r <= 0x9FFF {
			chinese++
		} else {
			other++
		}
	}
	return chinese + other*3/4 + len(node.ID)/3 + len(node.Name)/3 + nodeOverheadTokens
}

// truncateToBudget drops the lowest-weighted nodes until the full
// estimate, surviving edges included, fits within maxTokens. The
// input is returned unchanged when it already fits.
func truncateToBudget(graph *types.Subgraph, weights map[string]float64, maxTokens int) *types.Subgraph {
	if maxTokens <= 0 || EstimateTokens(graph) <= maxTokens {
		return graph
	}

	ranked := make([]*types.Node, len(graph.Nodes))
	copy(ranked, graph.Nodes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return weights[ranked[i].ID] > weights[ranked[j].ID]
	})

	budget := int(float64(maxTokens) * truncateSlack)
	running := subgraphBaseTokens
	kept := make([]*types.Node, 0, len(ranked))
	keptIDs := make(map[string]struct{})
	for _, node := range ranked {
		cost := nodeTokens(node)
		if running+cost > budget {
			break
		}
		running += cost
		kept = append(kept, node)
		keptIDs[node.ID] = struct{}{}
	}

	// The edges that survive between kept nodes cost tokens too, so
	// keep shedding the lowest-weighted nodes until the whole graph
	// fits.
	for {
		out := &types.Subgraph{Nodes: kept, Edges: edgesWithin(graph.Edges, keptIDs)}
		if len(kept) == 0 || EstimateTokens(out) <= budget {
			return out
		}
		last := kept[len(kept)-1]
		kept = kept[:len(kept)-1]
		delete(keptIDs, last.ID)
	}
}

// edgesWithin returns the edges with both endpoints in ids.
func edgesWithin(edges []*types.Edge, ids map[string]struct{}) []*types.Edge {
	var kept []*types.Edge
	for _, edge := range edges {
		if _, ok := ids[edge.Source]; !ok {
			continue
		}
		if _, ok := ids[edge.Target]; !ok {
			continue
		}
		kept = append(kept, edge)
	}
	return kept
}
