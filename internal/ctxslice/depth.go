package ctxslice

import (
	"sort"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// expand grows seed by repeatedly adding any node reachable by one edge from
// the current set, up to maxDepth iterations (unlimitedDepth runs until a
// full pass adds nothing new). Every edge between two included nodes —
// whether it was used to reach a neighbor or simply connects two
// already-included nodes — joins the returned edge set.
func expand(state *graph.State, seed []*graph.Node, maxDepth int) ([]*graph.Node, []*graph.Edge) {
	included := nodeSet(seed)

	for iteration := 0; maxDepth == unlimitedDepth || iteration < maxDepth; iteration++ {
		added := false
		for id := range snapshotKeys(included) {
			for _, key := range state.OutAdjacency[id] {
				if addNeighbor(state, included, key.TargetID) {
					added = true
				}
			}
			for _, key := range state.InAdjacency[id] {
				if addNeighbor(state, included, key.SourceID) {
					added = true
				}
			}
		}
		if !added {
			break
		}
	}

	return collectSliceContents(state, included)
}

func snapshotKeys(m map[string]*graph.Node) map[string]*graph.Node {
	cp := make(map[string]*graph.Node, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func addNeighbor(state *graph.State, included map[string]*graph.Node, id string) bool {
	if _, ok := included[id]; ok {
		return false
	}
	n, ok := state.Nodes[id]
	if !ok {
		return false
	}
	included[id] = n
	return true
}

// collectSliceContents returns every included node alongside every edge in
// state whose source and target are both included, sorted deterministically
// by semantic ID / EdgeKey ordering.
func collectSliceContents(state *graph.State, included map[string]*graph.Node) ([]*graph.Node, []*graph.Edge) {
	nodes := make([]*graph.Node, 0, len(included))
	for _, n := range included {
		nodes = append(nodes, n)
	}
	sortNodes(nodes)

	var edges []*graph.Edge
	for key, e := range state.Edges {
		_, sourceIn := included[key.SourceID]
		_, targetIn := included[key.TargetID]
		if sourceIn && targetIn {
			edges = append(edges, e)
		}
	}
	sortEdges(edges)

	return nodes, edges
}

func sortNodes(nodes []*graph.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].SemanticID < nodes[j].SemanticID
	})
}

func sortEdges(edges []*graph.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].Key().Less(edges[j].Key())
	})
}
