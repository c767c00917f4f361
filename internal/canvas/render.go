package canvas

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// RenderOptions bundles the view-independent decoration inputs to [Render].
type RenderOptions struct {
	View      View
	Filter    Filter
	Selection map[string]bool
	Focus     string
}

// Render is a pure function of (nodes, edges, options): it never mutates its
// arguments and never touches the graph store directly. Given the same
// inputs it always produces the same [RenderData].
func Render(state *graph.State, opts RenderOptions) RenderData {
	nodes := filterNodes(state, opts.Filter)
	edges := filterEdges(state, nodes, opts.View)

	roots := buildForest(nodes, edges, opts)
	sortForest(roots)

	return RenderData{
		View:  opts.View,
		Roots: roots,
		Lines: renderLines(roots),
	}
}

// filterNodes keeps only the nodes matching f: type, phase ceiling,
// deleted-marker, and case-insensitive substring search over name/ID.
func filterNodes(state *graph.State, f Filter) map[string]*graph.Node {
	allowedTypes := toSet(f.NodeTypes)
	term := strings.ToLower(f.SearchTerm)

	kept := make(map[string]*graph.Node)
	for id, n := range state.Nodes {
		if len(allowedTypes) > 0 && !allowedTypes[string(n.Type)] {
			continue
		}
		if f.Phase != nil {
			phase, ok := nodePhase(n)
			if !ok || phase > *f.Phase {
				continue
			}
		}
		if !f.ShowDeleted && nodeDeleted(n) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(n.Name), term) && !strings.Contains(strings.ToLower(id), term) {
			continue
		}
		kept[id] = n
	}
	return kept
}

// filterEdges keeps only edges whose endpoints both survived node
// filtering and whose type label contains one of view's allowed
// substrings (every edge, for [ViewAll]).
func filterEdges(state *graph.State, nodes map[string]*graph.Node, view View) []*graph.Edge {
	substrings := viewEdgeSubstrings[view]
	var kept []*graph.Edge
	for _, e := range state.Edges {
		if _, ok := nodes[e.SourceID]; !ok {
			continue
		}
		if _, ok := nodes[e.TargetID]; !ok {
			continue
		}
		if view != ViewAll && !matchesAny(string(e.Type), substrings) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// buildForest turns the filtered nodes/edges into a tree: a node is a root
// if no surviving edge makes it a "child" (target) of another surviving
// node; anything left unreached after parent resolution also becomes a
// root, so every kept node appears exactly once.
func buildForest(nodes map[string]*graph.Node, edges []*graph.Edge, opts RenderOptions) []*RenderNode {
	rendered := make(map[string]*RenderNode, len(nodes))
	for id, n := range nodes {
		rendered[id] = &RenderNode{
			SemanticID: id,
			Type:       string(n.Type),
			Name:       n.Name,
			Focused:    id == opts.Focus,
			Selected:   opts.Selection[id],
		}
	}

	hasParent := make(map[string]bool, len(nodes))
	for _, e := range edges {
		parent, child := rendered[e.SourceID], rendered[e.TargetID]
		if parent == nil || child == nil || hasParent[e.TargetID] {
			continue
		}
		parent.Children = append(parent.Children, child)
		hasParent[e.TargetID] = true
	}

	var roots []*RenderNode
	for id, rn := range rendered {
		if !hasParent[id] {
			roots = append(roots, rn)
		}
	}
	assignDepth(roots, 0, map[string]bool{})
	return roots
}

// assignDepth stamps Depth on every node in the forest via DFS, guarding
// against revisiting a node within one branch if the edges happen to
// contain a cycle.
func assignDepth(nodes []*RenderNode, depth int, visiting map[string]bool) {
	for _, n := range nodes {
		n.Depth = depth
		if visiting[n.SemanticID] {
			n.Children = nil
			continue
		}
		visiting[n.SemanticID] = true
		assignDepth(n.Children, depth+1, visiting)
		delete(visiting, n.SemanticID)
	}
}

func sortForest(nodes []*RenderNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].SemanticID < nodes[j].SemanticID })
	for _, n := range nodes {
		sortForest(n.Children)
	}
}

// renderLines flattens the forest into indented ASCII lines, decorating
// focused and selected nodes.
func renderLines(roots []*RenderNode) []string {
	var lines []string
	var walk func(n *RenderNode)
	walk = func(n *RenderNode) {
		indent := strings.Repeat("  ", n.Depth)
		marker := ""
		if n.Focused {
			marker += " <focus>"
		}
		if n.Selected {
			marker += " *"
		}
		lines = append(lines, fmt.Sprintf("%s[%s] %s (%s)%s", indent, n.Type, n.Name, n.SemanticID, marker))
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return lines
}

func toSet(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func matchesAny(label string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(label, s) {
			return true
		}
	}
	return false
}

// nodePhase reads the well-known "phase" attribute, tolerating the
// float64/int/string shapes a round-tripped JSON attribute map may carry.
func nodePhase(n *graph.Node) (int, bool) {
	raw, ok := n.Attributes["phase"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return p, true
	default:
		return 0, false
	}
}

// nodeDeleted reads the well-known "deleted" attribute. The graph store
// itself performs hard deletes, so this only matters for nodes explicitly
// tagged as soft-deleted (e.g. retained for audit) by an upstream caller.
func nodeDeleted(n *graph.Node) bool {
	raw, ok := n.Attributes["deleted"]
	if !ok {
		return false
	}
	b, _ := raw.(bool)
	return b
}
