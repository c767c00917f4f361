// Package canvas holds the view-only state a terminal or GUI front-end
// needs to render a slice of the graph: the active view, an active filter,
// a selection set, and a focus node. None of this state is persisted or
// shared between sessions — it belongs entirely to one viewer.
package canvas

// View selects which edge-type lens the renderer applies when building the
// forest.
type View string

const (
	ViewHierarchy    View = "hierarchy"
	ViewAllocation   View = "allocation"
	ViewTraceability View = "traceability"
	ViewDependency   View = "dependency"
	ViewFChain       View = "fchain"
	ViewAll          View = "all"
)

// viewEdgeSubstrings lists, per view, the substrings an edge type's string
// label must contain at least one of to be kept. "all" keeps every edge
// regardless of label.
var viewEdgeSubstrings = map[View][]string{
	ViewHierarchy:    {"compose", "contains", "parent"},
	ViewAllocation:   {"allocate", "realize", "implement"},
	ViewTraceability: {"trace", "derive", "satisfy", "verify"},
	ViewDependency:   {"depend", "use", "require", "import"},
	ViewFChain:       {"flow", "trigger", "signal", "data", "io"},
}

// Filter narrows the set of nodes (and, transitively, edges) the renderer
// considers. A zero-value Filter keeps everything.
type Filter struct {
	NodeTypes   []string
	Phase       *int
	ShowDeleted bool
	SearchTerm  string
}

// IsZero reports whether f applies no restriction at all.
func (f Filter) IsZero() bool {
	return len(f.NodeTypes) == 0 && f.Phase == nil && !f.ShowDeleted && f.SearchTerm == ""
}

// RenderNode is one node as it appears in the rendered tree, with its
// resolved depth and decoration flags already computed.
type RenderNode struct {
	SemanticID string
	Type       string
	Name       string
	Depth      int
	Focused    bool
	Selected   bool
	Children   []*RenderNode
}

// RenderData is the pure output of [Render]: a forest of [RenderNode] plus
// the pre-rendered ASCII lines, so callers that just want text never need
// to walk the tree themselves.
type RenderData struct {
	View  View
	Roots []*RenderNode
	Lines []string
}
