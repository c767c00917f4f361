package graphstore

import "fmt"

// DuplicateSemanticId is returned by a strict (non-upsert) node write when
// the semantic ID already exists in the store.
type DuplicateSemanticId struct {
	SemanticID string
}

func (e *DuplicateSemanticId) Error() string {
	return fmt.Sprintf("duplicate semantic id: %s", e.SemanticID)
}

// DuplicateEdge is returned by a strict (non-upsert) edge write when the
// composite key (sourceId, type, targetId) already exists.
type DuplicateEdge struct {
	SourceID string
	Type     string
	TargetID string
}

func (e *DuplicateEdge) Error() string {
	return fmt.Sprintf("duplicate edge: %s -%s-> %s", e.SourceID, e.Type, e.TargetID)
}

// NodeNotFound is returned when an operation references a semantic ID that
// does not exist in the store — including a dangling edge reference that
// is not satisfied earlier in the same diff batch.
type NodeNotFound struct {
	SemanticID string
}

func (e *NodeNotFound) Error() string {
	return fmt.Sprintf("Node not found: %s", e.SemanticID)
}

// EdgeNotFound is returned when a remove-edge operation targets an edge
// that is not present in the store.
type EdgeNotFound struct {
	SourceID string
	Type     string
	TargetID string
}

func (e *EdgeNotFound) Error() string {
	return fmt.Sprintf("edge not found: %s -%s-> %s", e.SourceID, e.Type, e.TargetID)
}
