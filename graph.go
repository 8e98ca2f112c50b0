package graphrag

import (
	"context"
	"sort"

	"github.com/soundprediction/graphrag/pkg/types"
)

// nodeColors is the palette used by GetGraph; colors are assigned to
// node types in first-seen order over the sorted type list so a given
// response is stable.
var nodeColors = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

// GraphView is the visualization shape of an index: nodes carry a
// color per type, stable within one response.
type GraphView struct {
	Nodes []GraphViewNode `json:"nodes"`
	Edges []GraphViewEdge `json:"edges"`
}

// GraphViewNode is one node of the visualization payload.
type GraphViewNode struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Desc  string `json:"desc"`
	Color string `json:"color"`
}

// GraphViewEdge is one edge of the visualization payload.
type GraphViewEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// GetGraph returns the whole graph of an index in visualization
// shape.
func (e *Engine) GetGraph(ctx context.Context, index string) (*GraphView, error) {
	if index == "" {
		return nil, ErrEmptyIndex
	}

	nodes, err := e.store.GetNodesByIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	edges, err := e.store.GetEdgesByIndex(ctx, index)
	if err != nil {
		return nil, err
	}

	colors := colorByType(nodes)
	view := &GraphView{
		Nodes: make([]GraphViewNode, 0, len(nodes)),
		Edges: make([]GraphViewEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		view.Nodes = append(view.Nodes, GraphViewNode{
			ID:    n.ID,
			Name:  n.Name,
			Type:  n.Type,
			Desc:  n.Desc,
			Color: colors[n.Type],
		})
	}
	for _, edge := range edges {
		view.Edges = append(view.Edges, GraphViewEdge{
			ID:           edge.ID,
			Source:       edge.Source,
			Target:       edge.Target,
			Relationship: edge.Relationship,
		})
	}
	return view, nil
}

func colorByType(nodes []*types.Node) map[string]string {
	typeSet := make(map[string]struct{})
	for _, n := range nodes {
		typeSet[n.Type] = struct{}{}
	}
	nodeTypes := make([]string, 0, len(typeSet))
	for t := range typeSet {
		nodeTypes = append(nodeTypes, t)
	}
	sort.Strings(nodeTypes)

	colors := make(map[string]string, len(nodeTypes))
	for i, t := range nodeTypes {
		colors[t] = nodeColors[i%len(nodeColors)]
	}
	return colors
}

// ListIndices returns every index that currently has nodes.
func (e *Engine) ListIndices(ctx context.Context) ([]string, error) {
	return e.store.ListIndices(ctx)
}

// Close releases the store. The vector memory and semantic client are
// owned by the caller.
func (e *Engine) Close(ctx context.Context) error {
	return e.store.Close(ctx)
}
