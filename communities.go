package graphrag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/soundprediction/graphrag/pkg/types"
)

// RebuildCommunities wipes and recreates the community assignment of
// an index: label propagation over the current undirected edge set,
// one membership row per non-isolated node, and one language-model
// summary per community. Community ids are fresh per rebuild and must
// not be persisted by callers.
func (e *Engine) RebuildCommunities(ctx context.Context, index string) error {
	if index == "" {
		return ErrEmptyIndex
	}

	if err := e.store.DeleteCommunitiesByIndex(ctx, index); err != nil {
		return fmt.Errorf("clear communities: %w", err)
	}
	if err := e.store.DeleteMembershipsByIndex(ctx, index); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}

	edges, err := e.store.GetEdgesByIndex(ctx, index)
	if err != nil {
		return err
	}
	labels := e.detector.Detect(edges)
	if len(labels) == 0 {
		e.logger.Info("no communities detected", "index", index)
		return nil
	}

	// Fresh ids per rebuild; propagation labels are node ids and must
	// not leak out as community identifiers.
	communityIDs := make(map[string]string)
	members := make(map[string][]string)
	for nodeID, label := range labels {
		id, ok := communityIDs[label]
		if !ok {
			id = uuid.NewString()
			communityIDs[label] = id
		}
		members[id] = append(members[id], nodeID)
	}

	for id, nodeIDs := range members {
		for _, nodeID := range nodeIDs {
			membership := &types.CommunityMembership{
				Index:       index,
				CommunityID: id,
				NodeID:      nodeID,
			}
			if err := e.store.UpsertMembership(ctx, membership); err != nil {
				return fmt.Errorf("persist membership: %w", err)
			}
		}
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		nodeIDs := members[id]
		sort.Strings(nodeIDs)
		nodes, err := e.store.GetNodesByIDs(ctx, index, nodeIDs)
		if err != nil {
			return err
		}

		block := memberDescBlock(nodes)
		summary, err := e.semantic.SummarizeCommunity(ctx, block)
		if err != nil {
			return fmt.Errorf("summarize community: %w", err)
		}

		community := &types.Community{
			CommunityID: id,
			Index:       index,
			Summaries:   summary,
		}
		if err := e.store.UpsertCommunity(ctx, community); err != nil {
			return fmt.Errorf("persist community: %w", err)
		}
	}

	e.logger.Info("communities rebuilt", "index", index, "communities", len(members))
	return nil
}

func memberDescBlock(nodes []*types.Node) string {
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		lines = append(lines, fmt.Sprintf("Name:%s; Type:%s; Desc:%s", n.Name, n.Type, n.Desc))
	}
	return strings.Join(lines, "\n")
}

// RebuildGlobal synthesizes the per-index summary from all current
// community summaries and upserts it.
func (e *Engine) RebuildGlobal(ctx context.Context, index string) error {
	if index == "" {
		return ErrEmptyIndex
	}

	communities, err := e.store.GetCommunities(ctx, index)
	if err != nil {
		return err
	}
	if len(communities) == 0 {
		e.logger.Info("no community summaries to synthesize", "index", index)
		return nil
	}

	summaries := make([]string, 0, len(communities))
	for _, c := range communities {
		summaries = append(summaries, c.Summaries)
	}

	global, err := e.semantic.SummarizeGlobal(ctx, strings.Join(summaries, "\n"))
	if err != nil {
		return fmt.Errorf("summarize global: %w", err)
	}

	if err := e.store.UpsertGlobal(ctx, &types.Global{Index: index, Summaries: global}); err != nil {
		return fmt.Errorf("persist global: %w", err)
	}
	e.logger.Info("global summary rebuilt", "index", index, "communities", len(communities))
	return nil
}

// DeleteIndex removes every record of an index: vector entries first,
// then globals, communities, memberships, edges, and nodes, in that
// order so relational foreign keys hold throughout.
func (e *Engine) DeleteIndex(ctx context.Context, index string) error {
	if index == "" {
		return ErrEmptyIndex
	}

	unlock := e.lockIndex(index)
	defer unlock()

	nodes, err := e.store.GetNodesByIndex(ctx, index)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := e.memory.Remove(ctx, index, node.ID); err != nil {
			return fmt.Errorf("remove vector entry: %w", err)
		}
	}

	if err := e.store.DeleteGlobalsByIndex(ctx, index); err != nil {
		return err
	}
	if err := e.store.DeleteCommunitiesByIndex(ctx, index); err != nil {
		return err
	}
	if err := e.store.DeleteMembershipsByIndex(ctx, index); err != nil {
		return err
	}
	if err := e.store.DeleteEdgesByIndex(ctx, index); err != nil {
		return err
	}
	if err := e.store.DeleteNodesByIndex(ctx, index); err != nil {
		return err
	}

	e.logger.Info("index deleted", "index", index, "nodes", len(nodes))
	return nil
}
