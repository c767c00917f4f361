package ctxslice

import "github.com/flowtwo/graphforge/pkg/graph"

// charsPerToken is the rough characters-per-token ratio used for budgeting
// without making a real tokenizer call.
const charsPerToken = 4

// estimateTokens approximates how many LLM tokens slice's serialized form
// would consume.
func estimateTokens(nodes []*graph.Node, edges []*graph.Edge) int {
	chars := len(serialize(nodes, edges))
	return (chars + charsPerToken - 1) / charsPerToken
}

// pruneToFit re-runs depth expansion at progressively shallower depths until
// the estimated token count fits within budget, stopping at depth 1 even if
// the budget is still exceeded (a single hop of neighbors is the minimum
// useful slice). A slice seeded with unlimitedDepth is pruned by switching
// to a finite starting depth of 3 before stepping down, since there is no
// "outermost depth" to shrink from directly.
func pruneToFit(state *graph.State, seed []*graph.Node, depth, budget int) (int, []*graph.Node, []*graph.Edge) {
	if depth == unlimitedDepth {
		depth = 3
	}

	nodes, edges := expand(state, seed, depth)
	for estimateTokens(nodes, edges) > budget && depth > 1 {
		depth--
		nodes, edges = expand(state, seed, depth)
	}
	return depth, nodes, edges
}
