package formate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// SerializeDiff renders diff back into Format E text (without the outer
// <operations> wrapper). It is a deterministic round-trip for any diff
// produced by ParseDiff: ParseDiff(SerializeDiff(d)) yields a structurally
// equal Diff.
func SerializeDiff(diff *Diff) string {
	var b strings.Builder

	if diff.BaseSnapshot != nil {
		fmt.Fprintf(&b, "<base_snapshot>%s@v%d</base_snapshot>\n", diff.BaseSnapshot.SystemID, diff.BaseSnapshot.Version)
	}
	if diff.ViewContext != "" {
		fmt.Fprintf(&b, "<view_context>%s</view_context>\n", diff.ViewContext)
	}

	if len(diff.NodeOps) > 0 {
		b.WriteString(sectionNodes + "\n")
		for _, op := range diff.NodeOps {
			b.WriteString(serializeNodeOp(op))
			b.WriteByte('\n')
		}
	}
	if len(diff.EdgeOps) > 0 {
		b.WriteString(sectionEdges + "\n")
		for _, op := range diff.EdgeOps {
			b.WriteString(serializeEdgeOp(op))
			b.WriteByte('\n')
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func serializeNodeOp(op NodeOp) string {
	switch op.Kind {
	case OpRemoveNode:
		return "- " + op.SemanticID
	case OpUpdateNode:
		return "~ " + op.SemanticID + serializeDescriptionAndAttrs(op.Description, op.Attributes)
	default:
		return "+ " + op.SemanticID + serializeDescriptionAndAttrs(op.Description, op.Attributes)
	}
}

func serializeDescriptionAndAttrs(description string, attrs map[string]any) string {
	if description == "" && len(attrs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('|')
	b.WriteString(description)
	if len(attrs) > 0 {
		b.WriteString(" [")
		b.WriteString(serializeAttrs(attrs))
		b.WriteByte(']')
	}
	return b.String()
}

// serializeAttrs renders attrs deterministically, sorted by key.
func serializeAttrs(attrs map[string]any) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+serializeAttrValue(attrs[k]))
	}
	return strings.Join(parts, ", ")
}

func serializeAttrValue(v any) string {
	if s, ok := v.(string); ok {
		if !needsQuoting(s) {
			return s
		}
		b, err := json.Marshal(s)
		if err != nil {
			return s
		}
		return string(b)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// needsQuoting reports whether s must be JSON-quoted to survive a round trip
// through decodeAttrValue: any character splitTopLevel treats structurally
// (top-level comma, brackets, quotes) would corrupt a bare emission, and any
// token decodeAttrValue would itself reinterpret as a bool/null/number would
// silently change type.
func needsQuoting(s string) bool {
	if s == "true" || s == "false" || s == "null" {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	for _, c := range s {
		switch c {
		case ',', '[', ']', '{', '}', '"':
			return true
		}
	}
	return false
}

func serializeEdgeOp(op EdgeOp) string {
	prefix := "+"
	if op.Kind == OpRemoveEdge {
		prefix = "-"
	}
	return fmt.Sprintf("%s %s -%s-> %s", prefix, op.SourceID, op.Type.Arrow(), op.TargetID)
}

// SerializeGraph renders a full-graph snapshot as a Format E diff
// containing only add ("+") operations: nodes first (sorted by semantic
// ID), then edges (sorted lexicographically by composite key). If
// viewContext is non-empty it is included as a <view_context> line.
func SerializeGraph(state *graph.State, viewContext string) string {
	diff := &Diff{ViewContext: viewContext}

	ids := make([]string, 0, len(state.Nodes))
	for id := range state.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := state.Nodes[id]
		diff.NodeOps = append(diff.NodeOps, NodeOp{
			Kind:        OpAddNode,
			SemanticID:  n.SemanticID,
			Description: n.Description,
			Attributes:  n.Attributes,
		})
	}

	keys := make([]graph.EdgeKey, 0, len(state.Edges))
	for k := range state.Edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	for _, k := range keys {
		diff.EdgeOps = append(diff.EdgeOps, EdgeOp{
			Kind:     OpAddEdge,
			SourceID: k.SourceID,
			TargetID: k.TargetID,
			Type:     k.Type,
		})
	}

	return SerializeDiff(diff)
}
