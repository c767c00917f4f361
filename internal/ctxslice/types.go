// Package ctxslice classifies a free-form user message into a task tag and
// extracts a minimal subgraph (a [GraphSlice]) small enough to fit a
// configured token budget, for injection into an LLM prompt by
// internal/promptasm.
package ctxslice

import (
	"time"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// TaskTag is one of the fixed classification outcomes a user message can
// produce. Classification is keyword-driven and always resolves to exactly
// one tag, falling back to TaskGeneral when nothing more specific matches.
type TaskTag string

const (
	TaskDeriveTestcase   TaskTag = "derive-testcase"
	TaskDetailUsecase    TaskTag = "detail-usecase"
	TaskAllocateFunctions TaskTag = "allocate-functions"
	TaskValidatePhase    TaskTag = "validate-phase"
	TaskGeneral          TaskTag = "general"
)

// GraphSlice is a subset of the graph deemed relevant to one user message:
// a seed focus, an expansion depth, and the nodes/edges that survived
// classification, depth expansion, and (if needed) budget pruning.
type GraphSlice struct {
	Task  TaskTag
	Focus string
	Depth int

	Nodes []*graph.Node
	Edges []*graph.Edge

	EstimatedTokens int

	// SliceDuration records how long Slicer.Slice took, mirroring the hot
	// context assembler's AssemblyDuration bookkeeping.
	SliceDuration time.Duration
}

func nodeSet(nodes []*graph.Node) map[string]*graph.Node {
	m := make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		m[n.SemanticID] = n
	}
	return m
}
