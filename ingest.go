package graphrag

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/soundprediction/graphrag/pkg/store"
	"github.com/soundprediction/graphrag/pkg/types"
)

const (
	// identityCheckLimit is how many vector neighbours the dedup pass
	// inspects per extracted node.
	identityCheckLimit = 5
	// identityCheckMinRelevance is the relevance floor for those
	// neighbours.
	identityCheckMinRelevance = 0.7

	// orphanSearchLimit bounds the description search during orphan
	// repair.
	orphanSearchLimit        = 10
	orphanSearchMinRelevance = 0.5
	// orphanNameSearchLimit bounds the fallback name search, used when
	// the description search yields fewer than three candidates.
	orphanNameSearchLimit        = 5
	orphanNameSearchMinRelevance = 0.6
	// orphanCandidateCap is how many candidates are resolved and put
	// to the language model.
	orphanCandidateCap = 5
	// orphanMaxEdges stops repair after this many inserted edges.
	orphanMaxEdges = 2
)

// InsertGraphData extracts a knowledge graph from text and merges it
// into index. Extraction or persistence failures are logged and
// swallowed so a failing chunk never aborts a multi-chunk ingest;
// only input validation surfaces synchronously.
func (e *Engine) InsertGraphData(ctx context.Context, index, text string) error {
	if index == "" {
		return ErrEmptyIndex
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	unlock := e.lockIndex(index)
	defer unlock()

	if err := e.insertGraphData(ctx, index, text); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		e.logger.Error("ingest failed, chunk abandoned", "index", index, "error", err)
	}
	return nil
}

// InsertGraphDataChunked splits text into overlapping chunks and
// ingests each independently.
func (e *Engine) InsertGraphDataChunked(ctx context.Context, index, text string) error {
	if index == "" {
		return ErrEmptyIndex
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	chunks := e.chunker.Chunk(text)
	e.logger.Info("ingesting chunked text", "index", index, "chunks", len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.InsertGraphData(ctx, index, chunk); err != nil {
			return err
		}
		e.logger.Debug("chunk ingested", "index", index, "chunk", i+1, "total", len(chunks))
	}
	return nil
}

// ingestState tracks one InsertGraphData invocation.
type ingestState struct {
	index   string
	byID    map[string]*types.Node
	byName  map[string]*types.Node
	pairs   map[string]struct{}
	created []*types.Node
	localTo map[string]string
}

func (e *Engine) newIngestState(ctx context.Context, index string) (*ingestState, error) {
	existing, err := e.store.GetNodesByIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	edges, err := e.store.GetEdgesByIndex(ctx, index)
	if err != nil {
		return nil, err
	}

	st := &ingestState{
		index:   index,
		byID:    make(map[string]*types.Node, len(existing)),
		byName:  make(map[string]*types.Node, len(existing)),
		pairs:   make(map[string]struct{}, len(edges)),
		localTo: make(map[string]string),
	}
	for _, n := range existing {
		st.byID[n.ID] = n
		st.byName[n.Name] = n
	}
	for _, edge := range edges {
		st.pairs[edge.PairKey()] = struct{}{}
	}
	return st, nil
}

func (st *ingestState) track(n *types.Node) {
	st.byID[n.ID] = n
	st.byName[n.Name] = n
}

func (e *Engine) insertGraphData(ctx context.Context, index, text string) error {
	graph, err := e.semantic.ExtractGraph(ctx, text)
	if err != nil {
		return err
	}
	if graph == nil || len(graph.Nodes) == 0 {
		e.logger.Debug("extraction yielded no entities", "index", index)
		return nil
	}

	st, err := e.newIngestState(ctx, index)
	if err != nil {
		return err
	}

	for i := range graph.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.resolveExtractedNode(ctx, st, &graph.Nodes[i]); err != nil {
			return err
		}
	}

	for _, extracted := range graph.Edges {
		sourceID, okS := st.localTo[extracted.SourceLocalID]
		targetID, okT := st.localTo[extracted.TargetLocalID]
		if !okS || !okT {
			e.logger.Debug("skipping edge with unresolved endpoint",
				"index", index, "source", extracted.SourceLocalID, "target", extracted.TargetLocalID)
			continue
		}
		e.insertResolvedEdge(ctx, st, sourceID, targetID, extracted.Relationship)
	}

	if err := e.repairOrphans(ctx, st); err != nil {
		return err
	}
	return e.dedupEdges(ctx, index)
}

// resolveExtractedNode maps one extracted node onto the persisted
// graph: exact-name merge, vector-identity merge, or creation of a
// new node followed by opportunistic relation inference against its
// vector neighbours.
func (e *Engine) resolveExtractedNode(ctx context.Context, st *ingestState, extracted *types.ExtractedNode) error {
	if extracted.Name == "" {
		return nil
	}

	// Exact-name merge.
	if existing, ok := st.byName[extracted.Name]; ok {
		if extracted.Desc != "" {
			merged, err := e.semantic.MergeDescriptions(ctx, existing.Desc, extracted.Desc)
			if err != nil {
				return err
			}
			if merged == "" {
				merged = existing.Desc + "; " + extracted.Desc
			}
			existing.Desc = merged
			if err := e.store.UpsertNode(ctx, existing); err != nil {
				return err
			}
			if err := e.memory.Save(ctx, st.index, existing.ID, existing.DescText()); err != nil {
				return err
			}
			e.logger.Debug("merged node description", "index", st.index, "name", existing.Name)
		}
		if extracted.LocalID != "" {
			st.localTo[extracted.LocalID] = existing.ID
		}
		return nil
	}

	node := &types.Node{
		ID:    uuid.NewString(),
		Index: st.index,
		Name:  extracted.Name,
		Type:  extracted.Type,
		Desc:  extracted.Desc,
	}

	// Vector-identity merge.
	hits, err := e.memory.Search(ctx, st.index, node.DescText(), identityCheckLimit, identityCheckMinRelevance)
	if err != nil {
		return err
	}
	if len(hits) > 0 && hits[0].Relevance == 1.0 {
		if extracted.LocalID != "" {
			st.localTo[extracted.LocalID] = hits[0].ID
		}
		e.logger.Debug("vector identity merge", "index", st.index, "name", node.Name, "id", hits[0].ID)
		return nil
	}
	potentialRelated := make([]string, 0, len(hits))
	for _, hit := range hits {
		potentialRelated = append(potentialRelated, hit.ID)
	}

	if err := e.store.UpsertNode(ctx, node); err != nil {
		return err
	}
	if err := e.memory.Save(ctx, st.index, node.ID, node.DescText()); err != nil {
		return err
	}
	st.track(node)
	st.created = append(st.created, node)
	if extracted.LocalID != "" {
		st.localTo[extracted.LocalID] = node.ID
	}

	// Opportunistic relation inference against the neighbours that
	// were similar but not identical.
	for _, candidateID := range potentialRelated {
		candidate, ok := st.byID[candidateID]
		if !ok {
			continue
		}
		if err := e.inferAndInsertEdge(ctx, st, candidate, node); err != nil {
			return err
		}
	}
	return nil
}

// inferAndInsertEdge asks the language model whether candidate and
// node are related and inserts the oriented edge when no edge exists
// between the pair yet. Returns the model error; insertion failures
// are logged and dropped.
func (e *Engine) inferAndInsertEdge(ctx context.Context, st *ingestState, candidate, node *types.Node) error {
	if _, exists := st.pairs[types.PairKey(candidate.ID, node.ID)]; exists {
		return nil
	}

	inference, err := e.semantic.InferRelation(ctx, candidate.DescText(), node.DescText())
	if err != nil {
		return err
	}
	if inference == nil || !inference.Related {
		return nil
	}

	source, target := candidate.ID, node.ID
	if inference.Source == types.RelationSourceSecond {
		source, target = target, source
	}
	e.insertResolvedEdge(ctx, st, source, target, inference.Relationship)
	return nil
}

// insertResolvedEdge persists an edge between two persisted node ids,
// tracking the pair so later steps see it. Integrity rejections are
// logged and the edge dropped.
func (e *Engine) insertResolvedEdge(ctx context.Context, st *ingestState, source, target, relationship string) {
	edge := &types.Edge{
		Index:        st.index,
		Source:       source,
		Target:       target,
		Relationship: relationship,
	}
	if err := edge.Validate(); err != nil {
		e.logger.Debug("dropping invalid edge", "index", st.index, "error", err)
		return
	}
	if err := e.store.InsertEdge(ctx, edge); err != nil {
		e.logger.Warn("dropping rejected edge",
			"index", st.index, "source", source, "target", target, "error", err)
		return
	}
	st.pairs[edge.PairKey()] = struct{}{}
}

// repairOrphans connects nodes created in this call that ended up
// with no incident edge.
func (e *Engine) repairOrphans(ctx context.Context, st *ingestState) error {
	if len(st.created) == 0 {
		return nil
	}

	edges, err := e.store.GetEdgesByIndex(ctx, st.index)
	if err != nil {
		return err
	}
	connected := make(map[string]struct{}, len(edges)*2)
	for _, edge := range edges {
		connected[edge.Source] = struct{}{}
		connected[edge.Target] = struct{}{}
	}

	for _, node := range st.created {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := connected[node.ID]; ok {
			continue
		}
		if err := e.attemptConnectOrphan(ctx, st, node); err != nil {
			return err
		}
	}
	return nil
}

// attemptConnectOrphan searches the vector memory for nodes similar
// to the orphan and asks the language model to relate them, stopping
// after two inserted edges.
func (e *Engine) attemptConnectOrphan(ctx context.Context, st *ingestState, orphan *types.Node) error {
	var candidateIDs []string
	seen := map[string]struct{}{orphan.ID: {}}

	collect := func(hits []types.SearchHit) {
		for _, hit := range hits {
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			candidateIDs = append(candidateIDs, hit.ID)
		}
	}

	hits, err := e.memory.Search(ctx, st.index, orphan.DescText(), orphanSearchLimit, orphanSearchMinRelevance)
	if err != nil {
		return err
	}
	collect(hits)

	if len(candidateIDs) < 3 {
		hits, err = e.memory.Search(ctx, st.index, orphan.Name, orphanNameSearchLimit, orphanNameSearchMinRelevance)
		if err != nil {
			return err
		}
		collect(hits)
	}

	if len(candidateIDs) > orphanSearchLimit {
		candidateIDs = candidateIDs[:orphanSearchLimit]
	}
	candidates, err := e.store.GetNodesByIDs(ctx, st.index, candidateIDs)
	if err != nil {
		return err
	}
	if len(candidates) > orphanCandidateCap {
		candidates = candidates[:orphanCandidateCap]
	}

	inserted := 0
	for _, candidate := range candidates {
		if inserted >= orphanMaxEdges {
			break
		}
		if _, exists := st.pairs[types.PairKey(candidate.ID, orphan.ID)]; exists {
			continue
		}
		before := len(st.pairs)
		if err := e.inferAndInsertEdge(ctx, st, candidate, orphan); err != nil {
			return err
		}
		if len(st.pairs) > before {
			inserted++
		}
	}
	if inserted > 0 {
		e.logger.Debug("connected orphan", "index", st.index, "name", orphan.Name, "edges", inserted)
	}
	return nil
}

// dedupEdges collapses duplicate undirected edges of an index into
// one edge per pair, semantically merging relationship labels.
func (e *Engine) dedupEdges(ctx context.Context, index string) error {
	edges, err := e.store.GetEdgesByIndex(ctx, index)
	if err != nil {
		return err
	}

	groups := make(map[string][]*types.Edge)
	var order []string
	for _, edge := range edges {
		key := edge.PairKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], edge)
	}

	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		primary := group[0]
		changed := false
		for _, extra := range group[1:] {
			if extra.Relationship != primary.Relationship {
				merged, err := e.semantic.MergeDescriptions(ctx, primary.Relationship, extra.Relationship)
				if err != nil || merged == "" {
					merged = types.MergeRelationships(primary.Relationship, extra.Relationship)
				}
				primary.Relationship = merged
				changed = true
			}
			if err := e.store.DeleteEdge(ctx, index, extra.ID); err != nil {
				return err
			}
		}
		if changed {
			if err := e.store.UpdateEdge(ctx, primary); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		e.logger.Debug("deduplicated edges", "index", index, "pair", key, "removed", len(group)-1)
	}
	return nil
}
