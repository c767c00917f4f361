package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/flowtwo/graphforge/pkg/formate"
	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/store"
)

// Persist writes every dirty node and edge for (workspaceID, systemID) to
// the long-term store, creates an audit-log entry describing the
// persistence, then clears the dirty set — in that order, so a failure
// midway leaves the dirty set intact for a later retry rather than losing
// track of unsaved work. Persistence happens only on explicit /save, /commit,
// or graceful shutdown; there is no auto-save timer.
func (o *Orchestrator) Persist(ctx context.Context, workspaceID, systemID string) error {
	svc, err := o.Data(ctx, workspaceID, systemID)
	if err != nil {
		return err
	}

	dirty := svc.Store().Dirty()
	if dirty.Empty() {
		return nil
	}

	var nodes []*graph.Node
	for id := range dirty.Nodes {
		if n, ok := svc.GetNode(id); ok {
			nodes = append(nodes, n)
		}
	}
	var edges []*graph.Edge
	for key := range dirty.Edges {
		if e, ok := svc.GetEdge(key.SourceID, key.Type, key.TargetID); ok {
			edges = append(edges, e)
		}
	}

	if err := o.store.SaveNodes(ctx, workspaceID, systemID, nodes); err != nil {
		return fmt.Errorf("orchestrator: persist: save nodes: %w", err)
	}
	if err := o.store.SaveEdges(ctx, workspaceID, systemID, edges); err != nil {
		return fmt.Errorf("orchestrator: persist: save edges: %w", err)
	}

	if err := o.store.CreateAuditLog(ctx, store.AuditLogEntry{
		WorkspaceID: workspaceID,
		SystemID:    systemID,
		Action:      "persist",
		Diff:        formate.SerializeDiff(dirtyDiff(nodes, edges)),
		Timestamp:   time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("orchestrator: persist: create audit log: %w", err)
	}

	svc.Store().ClearDirty(dirty)
	return nil
}

// dirtyDiff renders the set of nodes and edges just persisted as a
// Format E add-only diff, so the audit log's Diff field stays the single
// bit-exact artifact the core owns even for a bulk persistence entry
// rather than a single applied operations block.
func dirtyDiff(nodes []*graph.Node, edges []*graph.Edge) *formate.Diff {
	diff := &formate.Diff{}
	for _, n := range nodes {
		diff.NodeOps = append(diff.NodeOps, formate.NodeOp{
			Kind:        formate.OpAddNode,
			SemanticID:  n.SemanticID,
			Description: n.Description,
			Attributes:  n.Attributes,
		})
	}
	for _, e := range edges {
		diff.EdgeOps = append(diff.EdgeOps, formate.EdgeOp{
			Kind:     formate.OpAddEdge,
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Type:     e.Type,
		})
	}
	return diff
}
