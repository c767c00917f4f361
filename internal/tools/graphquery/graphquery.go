// Package graphquery implements the "graph_query" tool: a single read-only
// tool the LLM can invoke mid-response to inspect the graph without waiting
// for a full turn to complete. It never mutates the store it reads from.
package graphquery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/flowtwo/graphforge/internal/tools"
	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/provider/llm"
)

// Backend is the read-only view of the graph the tool queries against. A
// *graphstore.Store satisfies this directly.
type Backend interface {
	ToGraphState() *graph.State
}

// queryArgs is the JSON-decoded input for the "graph_query" tool.
type queryArgs struct {
	QueryType string  `json:"queryType"`
	Filters   filters `json:"filters"`
}

type filters struct {
	SourceType string `json:"sourceType,omitempty"`
	TargetType string `json:"targetType,omitempty"`
	EdgeType   string `json:"edgeType,omitempty"`
	NodeType   string `json:"nodeType,omitempty"`
	SemanticID string `json:"semanticId,omitempty"`
	SourceID   string `json:"sourceId,omitempty"`
	TargetID   string `json:"targetId,omitempty"`
	FchainID   string `json:"fchainId,omitempty"`
}

// edgeResult is an edge enriched with its endpoints' node types.
type edgeResult struct {
	SourceID   string `json:"sourceId"`
	TargetID   string `json:"targetId"`
	Type       string `json:"type"`
	SourceType string `json:"sourceType,omitempty"`
	TargetType string `json:"targetType,omitempty"`
}

type checkEdgeResult struct {
	Exists bool        `json:"exists"`
	Edge   *edgeResult `json:"edge,omitempty"`
}

type chainStep struct {
	FromNode string `json:"fromNode"`
	FlowNode string `json:"flowNode"`
	ToNode   string `json:"toNode"`
}

type chainIssue struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

type ioChainResult struct {
	Steps  []chainStep  `json:"steps"`
	Issues []chainIssue `json:"issues"`
}

const (
	queryTypeEdges     = "edges"
	queryTypeNodes     = "nodes"
	queryTypeCheckEdge = "check_edge"
	queryTypeIOChain   = "io_chain"
)

// toolDescription documents the four query types for the LLM.
const toolDescription = "Inspect the current graph state without modifying it. " +
	"queryType=edges returns edges matching the given filters, enriched with " +
	"endpoint node types. queryType=nodes returns nodes matching nodeType " +
	"and/or semanticId. queryType=check_edge (requires sourceId, targetId) " +
	"reports whether an edge exists between them. queryType=io_chain " +
	"(requires fchainId) reconstructs the data-flow chain through an " +
	"FCHAIN's composed functions and flags bidirectional, circular, and " +
	"duplicate data-flow issues."

func parameterSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"queryType": map[string]any{
				"type": "string",
				"enum": []string{queryTypeEdges, queryTypeNodes, queryTypeCheckEdge, queryTypeIOChain},
			},
			"filters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sourceType": map[string]any{"type": "string"},
					"targetType": map[string]any{"type": "string"},
					"edgeType":   map[string]any{"type": "string"},
					"nodeType":   map[string]any{"type": "string"},
					"semanticId": map[string]any{"type": "string"},
					"sourceId":   map[string]any{"type": "string"},
					"targetId":   map[string]any{"type": "string"},
					"fchainId":   map[string]any{"type": "string"},
				},
			},
		},
		"required": []string{"queryType"},
	}
}

// NewTool returns the "graph_query" tool, reading from backend.
func NewTool(backend Backend) tools.Tool {
	return tools.Tool{
		Definition: llm.ToolDefinition{
			Name:                "graph_query",
			Description:         toolDescription,
			Parameters:          parameterSchema(),
			EstimatedDurationMs: 5,
			MaxDurationMs:       200,
			Idempotent:          true,
		},
		Handler: makeHandler(backend),
	}
}

func makeHandler(backend Backend) func(ctx context.Context, args string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a queryArgs
		if args != "" {
			if err := json.Unmarshal([]byte(args), &a); err != nil {
				return "", fmt.Errorf("graph_query: invalid args: %w", err)
			}
		}

		state := backend.ToGraphState()

		var (
			result any
			err    error
		)
		switch a.QueryType {
		case queryTypeEdges:
			result = queryEdges(state, a.Filters)
		case queryTypeNodes:
			result = queryNodes(state, a.Filters)
		case queryTypeCheckEdge:
			result, err = queryCheckEdge(state, a.Filters)
		case queryTypeIOChain:
			result, err = queryIOChain(state, a.Filters)
		default:
			return "", fmt.Errorf("graph_query: unknown queryType %q", a.QueryType)
		}
		if err != nil {
			return "", err
		}

		out, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("graph_query: encode result: %w", err)
		}
		return string(out), nil
	}
}

func queryEdges(state *graph.State, f filters) []edgeResult {
	out := make([]edgeResult, 0)
	for key := range state.Edges {
		srcNode := state.Nodes[key.SourceID]
		tgtNode := state.Nodes[key.TargetID]

		if f.EdgeType != "" && string(key.Type) != f.EdgeType {
			continue
		}
		if f.SourceID != "" && key.SourceID != f.SourceID {
			continue
		}
		if f.TargetID != "" && key.TargetID != f.TargetID {
			continue
		}
		if f.SourceType != "" && (srcNode == nil || string(srcNode.Type) != f.SourceType) {
			continue
		}
		if f.TargetType != "" && (tgtNode == nil || string(tgtNode.Type) != f.TargetType) {
			continue
		}

		r := edgeResult{SourceID: key.SourceID, TargetID: key.TargetID, Type: string(key.Type)}
		if srcNode != nil {
			r.SourceType = string(srcNode.Type)
		}
		if tgtNode != nil {
			r.TargetType = string(tgtNode.Type)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

func queryNodes(state *graph.State, f filters) []*graph.Node {
	out := make([]*graph.Node, 0)
	for id, n := range state.Nodes {
		if f.SemanticID != "" && id != f.SemanticID {
			continue
		}
		if f.NodeType != "" && string(n.Type) != f.NodeType {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SemanticID < out[j].SemanticID })
	return out
}

func queryCheckEdge(state *graph.State, f filters) (checkEdgeResult, error) {
	if f.SourceID == "" || f.TargetID == "" {
		return checkEdgeResult{}, fmt.Errorf("graph_query: check_edge requires sourceId and targetId")
	}

	for key := range state.Edges {
		if key.SourceID != f.SourceID || key.TargetID != f.TargetID {
			continue
		}
		if f.EdgeType != "" && string(key.Type) != f.EdgeType {
			continue
		}
		srcNode := state.Nodes[key.SourceID]
		tgtNode := state.Nodes[key.TargetID]
		r := edgeResult{SourceID: key.SourceID, TargetID: key.TargetID, Type: string(key.Type)}
		if srcNode != nil {
			r.SourceType = string(srcNode.Type)
		}
		if tgtNode != nil {
			r.TargetType = string(tgtNode.Type)
		}
		return checkEdgeResult{Exists: true, Edge: &r}, nil
	}
	return checkEdgeResult{Exists: false}, nil
}
