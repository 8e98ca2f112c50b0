package graphrag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/graphrag/pkg/store"
	"github.com/soundprediction/graphrag/pkg/types"
)

// fakeSemantic scripts the language model. Unset hooks return zero
// values.
type fakeSemantic struct {
	extractFn   func(text string) (*types.ExtractedGraph, error)
	mergeFn     func(a, b string) (string, error)
	inferFn     func(descA, descB string) (*types.RelationInference, error)
	communityFn func(members string) (string, error)
	globalFn    func(summaries string) (string, error)

	answer      string
	answerCalls int
	lastContext string
}

func (f *fakeSemantic) ExtractGraph(ctx context.Context, text string) (*types.ExtractedGraph, error) {
	if f.extractFn == nil {
		return &types.ExtractedGraph{}, nil
	}
	return f.extractFn(text)
}

func (f *fakeSemantic) MergeDescriptions(ctx context.Context, a, b string) (string, error) {
	if f.mergeFn == nil {
		return "", nil
	}
	return f.mergeFn(a, b)
}

func (f *fakeSemantic) InferRelation(ctx context.Context, descA, descB string) (*types.RelationInference, error) {
	if f.inferFn == nil {
		return &types.RelationInference{}, nil
	}
	return f.inferFn(descA, descB)
}

func (f *fakeSemantic) SummarizeCommunity(ctx context.Context, members string) (string, error) {
	if f.communityFn == nil {
		return "community summary", nil
	}
	return f.communityFn(members)
}

func (f *fakeSemantic) SummarizeGlobal(ctx context.Context, summaries string) (string, error) {
	if f.globalFn == nil {
		return "global summary", nil
	}
	return f.globalFn(summaries)
}

func (f *fakeSemantic) Answer(ctx context.Context, subgraphJSON, question, extraContext string) (string, error) {
	f.answerCalls++
	f.lastContext = extraContext
	return f.answer, nil
}

func (f *fakeSemantic) AnswerStream(ctx context.Context, subgraphJSON, question, extraContext string, fn func(string) error) error {
	f.answerCalls++
	for _, r := range f.answer {
		if err := fn(string(r)); err != nil {
			return err
		}
	}
	return nil
}

// fakeMemory records saves and answers searches via a hook.
type fakeMemory struct {
	saves    map[string][]string // index/id -> texts saved, in order
	searchFn func(index, query string, limit int, minRelevance float64) []types.SearchHit
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{saves: make(map[string][]string)}
}

func (f *fakeMemory) Save(ctx context.Context, index, id, text string) error {
	key := index + "/" + id
	f.saves[key] = append(f.saves[key], text)
	return nil
}

func (f *fakeMemory) Search(ctx context.Context, index, query string, limit int, minRelevance float64) ([]types.SearchHit, error) {
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(index, query, limit, minRelevance), nil
}

func (f *fakeMemory) Remove(ctx context.Context, index, id string) error {
	delete(f.saves, index+"/"+id)
	return nil
}

func extractionOf(nodes []types.ExtractedNode, edges []types.ExtractedEdge) func(string) (*types.ExtractedGraph, error) {
	return func(string) (*types.ExtractedGraph, error) {
		return &types.ExtractedGraph{Nodes: nodes, Edges: edges}, nil
	}
}

func TestInsertGraphDataValidatesInput(t *testing.T) {
	e := NewEngine(store.NewMemoryStore(), newFakeMemory(), &fakeSemantic{})

	assert.ErrorIs(t, e.InsertGraphData(context.Background(), "", "text"), ErrEmptyIndex)
	assert.ErrorIs(t, e.InsertGraphData(context.Background(), "idx", "  "), ErrEmptyText)
}

func TestInsertGraphDataSwallowsExtractionFailure(t *testing.T) {
	sem := &fakeSemantic{extractFn: func(string) (*types.ExtractedGraph, error) {
		return nil, errors.New("model unavailable")
	}}
	e := NewEngine(store.NewMemoryStore(), newFakeMemory(), sem)

	err := e.InsertGraphData(context.Background(), "idx", "some text")
	assert.NoError(t, err)
}

func TestInsertGraphDataCreatesNodesAndEdges(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	sem := &fakeSemantic{extractFn: extractionOf(
		[]types.ExtractedNode{
			{LocalID: "1", Name: "Alice", Type: "Person", Desc: "a doctor"},
			{LocalID: "2", Name: "Berlin", Type: "City", Desc: "a city"},
		},
		[]types.ExtractedEdge{
			{SourceLocalID: "1", TargetLocalID: "2", Relationship: "lives in"},
		},
	)}
	e := NewEngine(s, newFakeMemory(), sem)

	require.NoError(t, e.InsertGraphData(ctx, "idx", "Alice lives in Berlin."))

	nodes, err := s.GetNodesByIndex(ctx, "idx")
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	edges, err := s.GetEdgesByIndex(ctx, "idx")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "lives in", edges[0].Relationship)
}

func TestExactNameMergeAccumulatesDescription(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	mem := newFakeMemory()
	sem := &fakeSemantic{}

	sem.extractFn = extractionOf([]types.ExtractedNode{
		{LocalID: "1", Name: "Alice", Type: "Person", Desc: "is a doctor"},
	}, nil)
	e := NewEngine(s, mem, sem)
	require.NoError(t, e.InsertGraphData(ctx, "idx", "Alice is a doctor."))

	sem.extractFn = extractionOf([]types.ExtractedNode{
		{LocalID: "1", Name: "Alice", Type: "Person", Desc: "works in Berlin"},
	}, nil)
	require.NoError(t, e.InsertGraphData(ctx, "idx", "Alice works in Berlin."))

	nodes, err := s.GetNodesByIndex(ctx, "idx")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Alice", nodes[0].Name)
	assert.Contains(t, nodes[0].Desc, "is a doctor")
	assert.Contains(t, nodes[0].Desc, "works in Berlin")

	// One vector entry for Alice, re-saved on merge.
	assert.Len(t, mem.saves, 1)
	texts := mem.saves["idx/"+nodes[0].ID]
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "works in Berlin")
}

func TestVectorIdentityMergeReusesExistingNode(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	existing := &types.Node{ID: "nyc-id", Index: "idx", Name: "New York City", Type: "City", Desc: "the big apple"}
	require.NoError(t, s.UpsertNode(ctx, existing))
	require.NoError(t, s.UpsertNode(ctx, &types.Node{ID: "tourist", Index: "idx", Name: "Tourist", Type: "Person", Desc: "visits"}))

	mem := newFakeMemory()
	mem.searchFn = func(index, query string, limit int, minRelevance float64) []types.SearchHit {
		if strings.Contains(query, "NYC") {
			return []types.SearchHit{{ID: "nyc-id", Text: "Name:New York City", Relevance: 1.0}}
		}
		return nil
	}

	sem := &fakeSemantic{extractFn: extractionOf(
		[]types.ExtractedNode{
			{LocalID: "1", Name: "NYC", Type: "City", Desc: "NYC the city"},
			{LocalID: "2", Name: "Tourist", Type: "Person", Desc: ""},
		},
		[]types.ExtractedEdge{
			{SourceLocalID: "2", TargetLocalID: "1", Relationship: "visits"},
		},
	)}
	e := NewEngine(s, mem, sem)

	require.NoError(t, e.InsertGraphData(ctx, "idx", "The tourist visits NYC."))

	nodes, err := s.GetNodesByIndex(ctx, "idx")
	require.NoError(t, err)
	assert.Len(t, nodes, 2, "no new node for NYC")

	edges, err := s.GetEdgesByIndex(ctx, "idx")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "tourist", edges[0].Source)
	assert.Equal(t, "nyc-id", edges[0].Target, "edge resolves to the existing node")
}

func TestOrphanRepairStopsAfterTwoEdges(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("n%d", i)
		require.NoError(t, s.UpsertNode(ctx, &types.Node{ID: id, Index: "idx", Name: id, Type: "T", Desc: "existing"}))
	}

	mem := newFakeMemory()
	mem.searchFn = func(index, query string, limit int, minRelevance float64) []types.SearchHit {
		// Candidates only surface for the orphan-repair search.
		if minRelevance == 0.5 {
			return []types.SearchHit{
				{ID: "n1", Relevance: 0.9},
				{ID: "n2", Relevance: 0.8},
				{ID: "n3", Relevance: 0.7},
				{ID: "n4", Relevance: 0.6},
			}
		}
		return nil
	}

	sem := &fakeSemantic{
		extractFn: extractionOf([]types.ExtractedNode{
			{LocalID: "1", Name: "Loner", Type: "T", Desc: "a lone concept"},
		}, nil),
		inferFn: func(a, b string) (*types.RelationInference, error) {
			return &types.RelationInference{Related: true, Source: types.RelationSourceFirst, Relationship: "related to"}, nil
		},
	}
	e := NewEngine(s, mem, sem)

	require.NoError(t, e.InsertGraphData(ctx, "idx", "A lone concept."))

	edges, err := s.GetEdgesByIndex(ctx, "idx")
	require.NoError(t, err)
	assert.Len(t, edges, 2, "repair stops after two inserted edges")
}

func TestEdgeDedupMergesRelationships(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	sem := &fakeSemantic{extractFn: extractionOf(
		[]types.ExtractedNode{
			{LocalID: "1", Name: "A", Type: "T", Desc: "a"},
			{LocalID: "2", Name: "B", Type: "T", Desc: "b"},
		},
		[]types.ExtractedEdge{
			{SourceLocalID: "1", TargetLocalID: "2", Relationship: "knows"},
			{SourceLocalID: "2", TargetLocalID: "1", Relationship: "works with"},
		},
	)}
	e := NewEngine(s, newFakeMemory(), sem)

	require.NoError(t, e.InsertGraphData(ctx, "idx", "A knows and works with B."))

	edges, err := s.GetEdgesByIndex(ctx, "idx")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, types.RelationshipContains(edges[0].Relationship, "knows"))
	assert.True(t, types.RelationshipContains(edges[0].Relationship, "works with"))
}

func TestSearchGraphEmptyIndexSkipsModel(t *testing.T) {
	sem := &fakeSemantic{answer: "should not appear"}
	e := NewEngine(store.NewMemoryStore(), newFakeMemory(), sem)

	answer, err := e.SearchGraph(context.Background(), "empty", "hi")
	require.NoError(t, err)
	assert.Empty(t, answer)
	assert.Zero(t, sem.answerCalls)

	err = e.SearchGraphStream(context.Background(), "empty", "hi", func(string) error {
		t.Fatal("no fragments expected")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, sem.answerCalls)
}

// seedLineGraph persists a path n1-n2-...-nCount.
func seedLineGraph(t *testing.T, s store.Store, index string, count int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("n%d", i)
		require.NoError(t, s.UpsertNode(ctx, &types.Node{ID: id, Index: index, Name: id, Type: "T", Desc: "node " + id}))
	}
	for i := 1; i < count; i++ {
		edge := &types.Edge{
			Index:        index,
			Source:       fmt.Sprintf("n%d", i),
			Target:       fmt.Sprintf("n%d", i+1),
			Relationship: "next",
		}
		require.NoError(t, s.InsertEdge(ctx, edge))
	}
}

func TestBuildSubgraphHonorsBounds(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedLineGraph(t, s, "idx", 50)

	e := NewEngine(s, newFakeMemory(), &fakeSemantic{}, WithSearchConfig(&SearchConfig{
		SearchLimit:        10,
		SearchMinRelevance: 0.6,
		NodeDepth:          3,
		MaxNodes:           10,
		MaxTokens:          100000,
	}))

	seeds, err := s.GetNodesByIDs(ctx, "idx", []string{"n1", "n20", "n40"})
	require.NoError(t, err)
	weights := map[string]float64{"n1": 0.9, "n20": 0.8, "n40": 0.7}

	graph, err := e.BuildSubgraph(ctx, "idx", seeds, weights)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(graph.Nodes), 10)
	inGraph := make(map[string]struct{})
	for _, n := range graph.Nodes {
		inGraph[n.ID] = struct{}{}
	}
	for _, edge := range graph.Edges {
		_, okS := inGraph[edge.Source]
		_, okT := inGraph[edge.Target]
		assert.True(t, okS && okT, "edge endpoints stay in the node set")
	}
}

func TestSearchGraphAnswersOverSubgraph(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedLineGraph(t, s, "idx", 3)

	mem := newFakeMemory()
	mem.searchFn = func(index, query string, limit int, minRelevance float64) []types.SearchHit {
		return []types.SearchHit{{ID: "n1", Relevance: 0.9}}
	}
	sem := &fakeSemantic{answer: "n1 connects to n2"}
	e := NewEngine(s, mem, sem)

	answer, err := e.SearchGraph(ctx, "idx", "what connects?")
	require.NoError(t, err)
	assert.Equal(t, "n1 connects to n2", answer)
	assert.Equal(t, 1, sem.answerCalls)
}

func TestSearchGraphStreamForwardsFragments(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedLineGraph(t, s, "idx", 2)

	mem := newFakeMemory()
	mem.searchFn = func(index, query string, limit int, minRelevance float64) []types.SearchHit {
		return []types.SearchHit{{ID: "n1", Relevance: 0.9}}
	}
	sem := &fakeSemantic{answer: "ok"}
	e := NewEngine(s, mem, sem)

	var got strings.Builder
	err := e.SearchGraphStream(ctx, "idx", "q", func(fragment string) error {
		got.WriteString(fragment)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.String())
}

func TestSearchGraphCommunityIncludesSummaries(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedLineGraph(t, s, "idx", 2)
	require.NoError(t, s.UpsertCommunity(ctx, &types.Community{CommunityID: "c1", Index: "idx", Summaries: "a tight-knit pair"}))
	require.NoError(t, s.UpsertGlobal(ctx, &types.Global{Index: "idx", Summaries: "a tiny corpus"}))

	mem := newFakeMemory()
	mem.searchFn = func(index, query string, limit int, minRelevance float64) []types.SearchHit {
		return []types.SearchHit{{ID: "n1", Relevance: 0.9}}
	}
	sem := &fakeSemantic{answer: "answered"}
	e := NewEngine(s, mem, sem)

	answer, err := e.SearchGraphCommunity(ctx, "idx", "q")
	require.NoError(t, err)
	assert.Equal(t, "answered", answer)
	assert.Contains(t, sem.lastContext, "a tiny corpus")
	assert.Contains(t, sem.lastContext, "a tight-knit pair")
}

func TestRebuildCommunitiesPersistsMembershipsAndSummaries(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	// Two cliques plus one isolated node.
	seedLineGraph(t, s, "idx", 3)
	for _, id := range []string{"m1", "m2"} {
		require.NoError(t, s.UpsertNode(ctx, &types.Node{ID: id, Index: "idx", Name: id, Type: "T", Desc: "m"}))
	}
	require.NoError(t, s.InsertEdge(ctx, &types.Edge{Index: "idx", Source: "m1", Target: "m2", Relationship: "pairs"}))
	require.NoError(t, s.UpsertNode(ctx, &types.Node{ID: "iso", Index: "idx", Name: "iso", Type: "T", Desc: "isolated"}))

	e := NewEngine(s, newFakeMemory(), &fakeSemantic{})
	require.NoError(t, e.RebuildCommunities(ctx, "idx"))

	memberships, err := s.GetMemberships(ctx, "idx")
	require.NoError(t, err)

	perNode := make(map[string]int)
	for _, m := range memberships {
		perNode[m.NodeID]++
	}
	for _, id := range []string{"n1", "n2", "n3", "m1", "m2"} {
		assert.Equal(t, 1, perNode[id], "node %s has exactly one membership", id)
	}
	assert.Zero(t, perNode["iso"], "isolated nodes get no membership")

	communities, err := s.GetCommunities(ctx, "idx")
	require.NoError(t, err)
	summarized := make(map[string]bool)
	for _, c := range communities {
		summarized[c.CommunityID] = c.Summaries != ""
	}
	for _, m := range memberships {
		assert.True(t, summarized[m.CommunityID], "every referenced community has a summary")
	}
}

func TestRebuildCommunitiesWipesPreviousRun(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedLineGraph(t, s, "idx", 2)

	e := NewEngine(s, newFakeMemory(), &fakeSemantic{})
	require.NoError(t, e.RebuildCommunities(ctx, "idx"))
	first, err := s.GetCommunities(ctx, "idx")
	require.NoError(t, err)

	require.NoError(t, e.RebuildCommunities(ctx, "idx"))
	second, err := s.GetCommunities(ctx, "idx")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	memberships, err := s.GetMemberships(ctx, "idx")
	require.NoError(t, err)
	assert.Len(t, memberships, 2)
}

func TestRebuildGlobalSynthesizesCommunitySummaries(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertCommunity(ctx, &types.Community{CommunityID: "c1", Index: "idx", Summaries: "alpha"}))
	require.NoError(t, s.UpsertCommunity(ctx, &types.Community{CommunityID: "c2", Index: "idx", Summaries: "beta"}))

	var seen string
	sem := &fakeSemantic{globalFn: func(summaries string) (string, error) {
		seen = summaries
		return "combined", nil
	}}
	e := NewEngine(s, newFakeMemory(), sem)

	require.NoError(t, e.RebuildGlobal(ctx, "idx"))
	assert.Contains(t, seen, "alpha")
	assert.Contains(t, seen, "beta")

	g, err := s.GetGlobal(ctx, "idx")
	require.NoError(t, err)
	assert.Equal(t, "combined", g.Summaries)
}

func TestDeleteIndexRemovesEverything(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	mem := newFakeMemory()
	seedLineGraph(t, s, "idx", 3)
	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, mem.Save(ctx, "idx", id, "text"))
	}
	e := NewEngine(s, mem, &fakeSemantic{})
	require.NoError(t, e.RebuildCommunities(ctx, "idx"))
	require.NoError(t, e.RebuildGlobal(ctx, "idx"))

	require.NoError(t, e.DeleteIndex(ctx, "idx"))

	nodes, _ := s.GetNodesByIndex(ctx, "idx")
	edges, _ := s.GetEdgesByIndex(ctx, "idx")
	communities, _ := s.GetCommunities(ctx, "idx")
	memberships, _ := s.GetMemberships(ctx, "idx")
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
	assert.Empty(t, communities)
	assert.Empty(t, memberships)
	_, err := s.GetGlobal(ctx, "idx")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, mem.saves)
}

func TestGetGraphAssignsStableColors(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertNode(ctx, &types.Node{ID: "a", Index: "idx", Name: "a", Type: "Person", Desc: "x"}))
	require.NoError(t, s.UpsertNode(ctx, &types.Node{ID: "b", Index: "idx", Name: "b", Type: "Person", Desc: "y"}))
	require.NoError(t, s.UpsertNode(ctx, &types.Node{ID: "c", Index: "idx", Name: "c", Type: "City", Desc: "z"}))

	e := NewEngine(s, newFakeMemory(), &fakeSemantic{})
	view, err := e.GetGraph(ctx, "idx")
	require.NoError(t, err)
	require.Len(t, view.Nodes, 3)

	colors := make(map[string]string)
	for _, n := range view.Nodes {
		if prev, ok := colors[n.Type]; ok {
			assert.Equal(t, prev, n.Color, "same type, same color")
		}
		colors[n.Type] = n.Color
		assert.NotEmpty(t, n.Color)
	}
	assert.NotEqual(t, colors["Person"], colors["City"])
}

func TestInsertGraphDataChunkedIngestsAllChunks(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	calls := 0
	sem := &fakeSemantic{extractFn: func(text string) (*types.ExtractedGraph, error) {
		calls++
		name := fmt.Sprintf("Entity%d", calls)
		return &types.ExtractedGraph{Nodes: []types.ExtractedNode{
			{LocalID: "1", Name: name, Type: "T", Desc: "d"},
		}}, nil
	}}
	e := NewEngine(s, newFakeMemory(), sem)

	require.NoError(t, e.InsertGraphDataChunked(ctx, "idx", "one short text"))
	assert.Equal(t, 1, calls)

	nodes, err := s.GetNodesByIndex(ctx, "idx")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}
