package ctxslice

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// nodeTypeOrder fixes the section order used when grouping a slice's nodes
// by type for serialize, matching the order the node types are introduced
// throughout this system's documentation.
var nodeTypeOrder = []graph.NodeType{
	graph.NodeSystem,
	graph.NodeActor,
	graph.NodeUseCase,
	graph.NodeFunctionChain,
	graph.NodeFunction,
	graph.NodeFlow,
	graph.NodeRequirement,
	graph.NodeTest,
	graph.NodeModule,
	graph.NodeSchema,
}

// serialize renders nodes/edges as a human-readable block grouped by node
// type followed by a relationships list. This is deliberately not Format E
// — it is read-only context for the model, never parsed back.
func serialize(nodes []*graph.Node, edges []*graph.Edge) string {
	byType := make(map[graph.NodeType][]*graph.Node)
	for _, n := range nodes {
		byType[n.Type] = append(byType[n.Type], n)
	}

	var b strings.Builder
	for _, t := range nodeTypeOrder {
		group := byType[t]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].SemanticID < group[j].SemanticID })

		fmt.Fprintf(&b, "%s:\n", t)
		for _, n := range group {
			if n.Description != "" {
				fmt.Fprintf(&b, "  %s (%s): %s\n", n.SemanticID, n.Name, n.Description)
			} else {
				fmt.Fprintf(&b, "  %s (%s)\n", n.SemanticID, n.Name)
			}
		}
	}

	if len(edges) > 0 {
		b.WriteString("Relationships:\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "  %s -%s-> %s\n", e.SourceID, e.Type.Arrow(), e.TargetID)
		}
	}

	return b.String()
}
