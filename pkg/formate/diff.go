// Package formate implements the Format E codec: a compact, line-oriented
// textual diff language for graph mutations. It parses and serializes
// <operations>…</operations> blocks into a structured Diff and back.
package formate

import (
	"github.com/flowtwo/graphforge/pkg/graph"
)

// OpKind is one of a closed five-way sum: the diff applier and codec are
// exhaustively checked against this set at the boundary.
type OpKind string

const (
	OpAddNode    OpKind = "add_node"
	OpRemoveNode OpKind = "remove_node"
	OpUpdateNode OpKind = "update_node"
	OpAddEdge    OpKind = "add_edge"
	OpRemoveEdge OpKind = "remove_edge"
)

// BaseSnapshot records the advisory parent version declared by an
// <base_snapshot> line. The Graph Store accepts any parent; this is purely
// informational to the applier/caller.
type BaseSnapshot struct {
	SystemID string
	Version  int64
}

// NodeOp is a single node-section operation line.
type NodeOp struct {
	Kind OpKind // OpAddNode, OpRemoveNode, or OpUpdateNode

	SemanticID string

	// Description is empty for OpRemoveNode. For OpUpdateNode, an empty
	// Description means "leave the existing description unchanged" — the
	// applier merges rather than overwrites.
	Description string

	// Attributes is nil for OpRemoveNode. For OpUpdateNode, only the keys
	// present here are merged into the existing attributes map; keys absent
	// from Attributes are left untouched.
	Attributes map[string]any
}

// EdgeOp is a single edge-section operation line.
type EdgeOp struct {
	Kind OpKind // OpAddEdge or OpRemoveEdge

	SourceID string
	TargetID string
	Type     graph.EdgeType
}

// Diff is a parsed operations block: an optional base snapshot and view
// context declaration, plus ordered node and edge operations. Operations
// apply top-to-bottom within each section, and the node section applies in
// full before the edge section.
type Diff struct {
	BaseSnapshot *BaseSnapshot
	ViewContext  string
	NodeOps      []NodeOp
	EdgeOps      []EdgeOp
}
