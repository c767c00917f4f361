package graphstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowtwo/graphforge/pkg/formate"
	"github.com/flowtwo/graphforge/pkg/graph"
)

// ApplyDiff applies every operation in diff as a single atomic transaction:
// a working clone of the current state is built, every node operation is
// applied (top to bottom) followed by every edge operation (top to
// bottom), validating against the in-progress clone as it goes — so a node
// added earlier in the same batch satisfies an edge added later in it. If
// any operation fails, the clone is discarded and the live state is left
// untouched. Only on full success is the live state swapped in and change
// events emitted.
func (s *Store) ApplyDiff(diff *formate.Diff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.state.Clone()
	var events []ChangeEvent

	for _, op := range diff.NodeOps {
		ev, err := applyNodeOp(clone, op)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}

	for _, op := range diff.EdgeOps {
		ev, err := applyEdgeOp(clone, op)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}

	// Only now, with every op having succeeded against the clone, fold the
	// batch's dirty marks and events into live state. An aborted batch must
	// leave both untouched.
	s.state = clone
	for _, ev := range events {
		if ev.SemanticID != "" {
			s.dirty.MarkNode(ev.SemanticID)
		} else {
			s.dirty.MarkEdge(ev.EdgeKey)
		}
	}
	for _, ev := range events {
		s.subs.emit(ev)
	}
	return nil
}

func applyNodeOp(state *graph.State, op formate.NodeOp) (ChangeEvent, error) {
	switch op.Kind {
	case formate.OpAddNode:
		if _, exists := state.Nodes[op.SemanticID]; exists {
			return ChangeEvent{}, &DuplicateSemanticId{SemanticID: op.SemanticID}
		}
		name, typeAbbr, _, err := graph.ParseSemanticID(op.SemanticID)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("graphstore: apply add node: %w", err)
		}
		nodeType, err := graph.NodeTypeFromAbbrev(typeAbbr)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("graphstore: apply add node: %w", err)
		}
		now := time.Now()
		state.Nodes[op.SemanticID] = &graph.Node{
			SemanticID:  op.SemanticID,
			UUID:        uuid.NewString(),
			Type:        nodeType,
			Name:        name,
			Description: op.Description,
			Attributes:  cloneAttrs(op.Attributes),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		state.Version++
		return ChangeEvent{Kind: ChangeAddNode, SemanticID: op.SemanticID, Version: state.Version}, nil

	case formate.OpRemoveNode:
		if _, exists := state.Nodes[op.SemanticID]; !exists {
			return ChangeEvent{}, &NodeNotFound{SemanticID: op.SemanticID}
		}
		delete(state.Nodes, op.SemanticID)
		state.Version++
		return ChangeEvent{Kind: ChangeRemoveNode, SemanticID: op.SemanticID, Version: state.Version}, nil

	case formate.OpUpdateNode:
		existing, exists := state.Nodes[op.SemanticID]
		if !exists {
			return ChangeEvent{}, &NodeNotFound{SemanticID: op.SemanticID}
		}
		if op.Description != "" {
			existing.Description = op.Description
		}
		if len(op.Attributes) > 0 {
			if existing.Attributes == nil {
				existing.Attributes = make(map[string]any, len(op.Attributes))
			}
			for k, v := range op.Attributes {
				existing.Attributes[k] = v
			}
		}
		existing.UpdatedAt = time.Now()
		state.Version++
		return ChangeEvent{Kind: ChangeUpdateNode, SemanticID: op.SemanticID, Version: state.Version}, nil

	default:
		return ChangeEvent{}, fmt.Errorf("graphstore: apply node op: unknown op kind %q", op.Kind)
	}
}

func applyEdgeOp(state *graph.State, op formate.EdgeOp) (ChangeEvent, error) {
	key := graph.EdgeKey{SourceID: op.SourceID, Type: op.Type, TargetID: op.TargetID}

	switch op.Kind {
	case formate.OpAddEdge:
		if _, exists := state.Nodes[op.SourceID]; !exists {
			return ChangeEvent{}, &NodeNotFound{SemanticID: op.SourceID}
		}
		if _, exists := state.Nodes[op.TargetID]; !exists {
			return ChangeEvent{}, &NodeNotFound{SemanticID: op.TargetID}
		}
		if _, exists := state.Edges[key]; exists {
			return ChangeEvent{}, &DuplicateEdge{SourceID: op.SourceID, Type: string(op.Type), TargetID: op.TargetID}
		}
		state.Edges[key] = &graph.Edge{
			UUID:      uuid.NewString(),
			SourceID:  op.SourceID,
			TargetID:  op.TargetID,
			Type:      op.Type,
			CreatedAt: time.Now(),
		}
		state.OutAdjacency[op.SourceID] = append(state.OutAdjacency[op.SourceID], key)
		state.InAdjacency[op.TargetID] = append(state.InAdjacency[op.TargetID], key)
		state.Version++
		return ChangeEvent{Kind: ChangeAddEdge, EdgeKey: key, Version: state.Version}, nil

	case formate.OpRemoveEdge:
		if _, exists := state.Edges[key]; !exists {
			return ChangeEvent{}, &EdgeNotFound{SourceID: op.SourceID, Type: string(op.Type), TargetID: op.TargetID}
		}
		delete(state.Edges, key)
		state.OutAdjacency[op.SourceID] = removeKey(state.OutAdjacency[op.SourceID], key)
		state.InAdjacency[op.TargetID] = removeKey(state.InAdjacency[op.TargetID], key)
		state.Version++
		return ChangeEvent{Kind: ChangeRemoveEdge, EdgeKey: key, Version: state.Version}, nil

	default:
		return ChangeEvent{}, fmt.Errorf("graphstore: apply edge op: unknown op kind %q", op.Kind)
	}
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
