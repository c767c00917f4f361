package graphquery

import (
	"fmt"
	"sort"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// queryIOChain reconstructs the data-flow chain through an FCHAIN's
// composed children: every pair (writer, reader) that touches the same
// FLOW node becomes one ordered step, plus a list of detected issues.
func queryIOChain(state *graph.State, f filters) (ioChainResult, error) {
	if f.FchainID == "" {
		return ioChainResult{}, fmt.Errorf("graph_query: io_chain requires fchainId")
	}

	children := childrenOf(state, f.FchainID)

	var ioEdges []graph.EdgeKey
	for key := range state.Edges {
		if key.Type != graph.EdgeIO {
			continue
		}
		if children[key.SourceID] || children[key.TargetID] {
			ioEdges = append(ioEdges, key)
		}
	}

	writes := map[string][]string{} // flowID -> func IDs that write it
	reads := map[string][]string{}  // flowID -> func IDs that read it
	for _, key := range ioEdges {
		srcNode := state.Nodes[key.SourceID]
		tgtNode := state.Nodes[key.TargetID]
		switch {
		case tgtNode != nil && tgtNode.Type == graph.NodeFlow:
			writes[key.TargetID] = append(writes[key.TargetID], key.SourceID)
		case srcNode != nil && srcNode.Type == graph.NodeFlow:
			reads[key.SourceID] = append(reads[key.SourceID], key.TargetID)
		}
	}

	steps := buildSteps(writes, reads)
	issues := detectIssues(ioEdges, writes, reads)

	return ioChainResult{Steps: steps, Issues: issues}, nil
}

// childrenOf returns the set of node IDs composed directly by fchainId.
func childrenOf(state *graph.State, fchainID string) map[string]bool {
	children := map[string]bool{}
	for key := range state.Edges {
		if key.Type == graph.EdgeCompose && key.SourceID == fchainID {
			children[key.TargetID] = true
		}
	}
	return children
}

func buildSteps(writes, reads map[string][]string) []chainStep {
	seen := map[chainStep]bool{}
	var steps []chainStep
	for flowID, writers := range writes {
		for _, w := range writers {
			for _, r := range reads[flowID] {
				s := chainStep{FromNode: w, FlowNode: flowID, ToNode: r}
				if seen[s] {
					continue
				}
				seen[s] = true
				steps = append(steps, s)
			}
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].FromNode != steps[j].FromNode {
			return steps[i].FromNode < steps[j].FromNode
		}
		if steps[i].FlowNode != steps[j].FlowNode {
			return steps[i].FlowNode < steps[j].FlowNode
		}
		return steps[i].ToNode < steps[j].ToNode
	})
	return steps
}

func detectIssues(ioEdges []graph.EdgeKey, writes, reads map[string][]string) []chainIssue {
	var issues []chainIssue

	issues = append(issues, detectBidirectional(writes, reads)...)
	issues = append(issues, detectCircular(writes, reads)...)
	issues = append(issues, detectDuplicateEdges(ioEdges)...)

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Kind != issues[j].Kind {
			return issues[i].Kind < issues[j].Kind
		}
		return issues[i].Detail < issues[j].Detail
	})
	return issues
}

// detectBidirectional flags a func node that both writes and reads the same
// FLOW: A -io-> FLOW and FLOW -io-> A.
func detectBidirectional(writes, reads map[string][]string) []chainIssue {
	var issues []chainIssue
	for flowID, writers := range writes {
		writerSet := toSet(writers)
		for _, r := range reads[flowID] {
			if writerSet[r] {
				issues = append(issues, chainIssue{
					Kind:   "bidirectional",
					Detail: fmt.Sprintf("%s both writes and reads %s", r, flowID),
				})
			}
		}
	}
	return issues
}

// detectCircular flags a FLOW that, by walking FLOW -(read)-> func
// -(write)-> FLOW hops, is reachable from itself.
func detectCircular(writes, reads map[string][]string) []chainIssue {
	var issues []chainIssue
	for startFlow := range reads {
		if flowReachesItself(startFlow, writes, reads, map[string]bool{}) {
			issues = append(issues, chainIssue{
				Kind:   "circular",
				Detail: fmt.Sprintf("%s is reachable from itself through its readers and writers", startFlow),
			})
		}
	}
	return issues
}

// flowReachesItself walks FLOW -> func (reads) -> FLOW (writes) hops looking
// for a path back to start, treating visited flows as a guard against
// revisiting the same node in the (finite) subgraph.
func flowReachesItself(start string, writes, reads map[string][]string, visited map[string]bool) bool {
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, funcID := range reads[cur] {
			for flowID, writers := range writes {
				if !contains(writers, funcID) {
					continue
				}
				if flowID == start {
					return true
				}
				if !visited[flowID] {
					visited[flowID] = true
					queue = append(queue, flowID)
				}
			}
		}
	}
	return false
}

// detectDuplicateEdges flags a composite edge key that appears more than
// once in the collected slice. The underlying store is map-backed and
// cannot itself hold duplicate keys, but the check is implemented over the
// slice form so the algorithm also works against any future edge source
// that is not already deduplicated.
func detectDuplicateEdges(edges []graph.EdgeKey) []chainIssue {
	counts := map[graph.EdgeKey]int{}
	for _, e := range edges {
		counts[e]++
	}
	var issues []chainIssue
	for e, n := range counts {
		if n > 1 {
			issues = append(issues, chainIssue{
				Kind:   "duplicate",
				Detail: fmt.Sprintf("%s appears %d times", e.String(), n),
			})
		}
	}
	return issues
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func contains(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
