package ctxslice

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// defaultMaxPhase is the phaseNum used by the validate-phase strategy when
// the message names no explicit phase number. Phases in this system run
// 1..4, so "validate everything" without a number means "validate the
// whole pipeline".
const defaultMaxPhase = 4

var phaseNumberPattern = regexp.MustCompile(`\d+`)

// seedResult carries the classification output needed before depth
// expansion: the initial node set, the expansion depth, and (for
// single-node seeds) a focus semantic ID.
type seedResult struct {
	task  TaskTag
	focus string
	depth int
	nodes []*graph.Node
}

// selectSeed implements the per-task slice strategy from the task
// classification table: which nodes seed the slice and how many hops of
// depth expansion follow.
func selectSeed(state *graph.State, message string, maxDepth int) seedResult {
	task := classify(message)

	switch task {
	case TaskDeriveTestcase:
		return seedResult{task: task, depth: clampDepth(1, maxDepth), nodes: nodesOfTypes(state, graph.NodeRequirement, graph.NodeSystem)}

	case TaskDetailUsecase:
		return seedResult{task: task, depth: clampDepth(2, maxDepth), nodes: nodesOfTypes(state, graph.NodeUseCase)}

	case TaskAllocateFunctions:
		return seedResult{task: task, depth: clampDepth(2, maxDepth), nodes: nodesOfTypes(state, graph.NodeFunction, graph.NodeModule)}

	case TaskValidatePhase:
		phaseNum := extractPhaseNumber(message)
		return seedResult{task: task, depth: unlimitedDepth, nodes: nodesAtOrBelowPhase(state, phaseNum)}

	default:
		mentioned, focus := nodesMentionedIn(state, message)
		if len(mentioned) > 0 {
			return seedResult{task: TaskGeneral, focus: focus, depth: clampDepth(3, maxDepth), nodes: mentioned}
		}
		return seedResult{task: TaskGeneral, depth: clampDepth(3, maxDepth), nodes: nodesOfTypes(state, graph.NodeSystem)}
	}
}

// unlimitedDepth signals that depth expansion should run until no new
// neighbors are found rather than stopping at a fixed hop count, matching
// the validate-phase strategy's "no depth limit".
const unlimitedDepth = -1

func clampDepth(want, maxDepth int) int {
	if maxDepth > 0 && want > maxDepth {
		return maxDepth
	}
	return want
}

func nodesOfTypes(state *graph.State, types ...graph.NodeType) []*graph.Node {
	want := make(map[graph.NodeType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []*graph.Node
	for _, n := range state.Nodes {
		if want[n.Type] {
			out = append(out, n)
		}
	}
	return out
}

func nodesAtOrBelowPhase(state *graph.State, phaseNum int) []*graph.Node {
	var out []*graph.Node
	for _, n := range state.Nodes {
		phase, ok := nodePhase(n)
		if ok && phase <= phaseNum {
			out = append(out, n)
		}
	}
	return out
}

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

func extractPhaseNumber(message string) int {
	match := phaseNumberPattern.FindString(message)
	if match == "" {
		return defaultMaxPhase
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return defaultMaxPhase
	}
	return n
}

// nodesMentionedIn returns every node whose semantic ID or name appears
// (case-insensitively) in message, plus the semantic ID of the first match
// to use as the slice's focus node.
func nodesMentionedIn(state *graph.State, message string) ([]*graph.Node, string) {
	lower := strings.ToLower(message)
	var out []*graph.Node
	focus := ""
	for _, n := range state.Nodes {
		if strings.Contains(lower, strings.ToLower(n.SemanticID)) ||
			(n.Name != "" && strings.Contains(lower, strings.ToLower(n.Name))) {
			out = append(out, n)
			if focus == "" {
				focus = n.SemanticID
			}
		}
	}
	return out, focus
}
