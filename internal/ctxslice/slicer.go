package ctxslice

import (
	"time"

	"github.com/flowtwo/graphforge/pkg/graph"
)

const (
	defaultMaxDepth    = 3
	defaultTokenBudget = 4000
)

// Option is a functional option for [NewSlicer].
type Option func(*Slicer)

// WithMaxDepth caps the number of depth-expansion hops a finite-depth slice
// strategy may use. Defaults to 3.
func WithMaxDepth(n int) Option {
	return func(s *Slicer) { s.maxDepth = n }
}

// WithTokenBudget sets the estimated-token ceiling [Slicer.Slice] prunes
// slices down to. Defaults to 4000.
func WithTokenBudget(n int) Option {
	return func(s *Slicer) { s.tokenBudget = n }
}

// Slicer classifies user messages and extracts a [GraphSlice] sized to fit
// its configured token budget.
type Slicer struct {
	maxDepth    int
	tokenBudget int
}

// NewSlicer creates a [Slicer] with sensible defaults. Apply [Option] values
// to override them.
func NewSlicer(opts ...Option) *Slicer {
	s := &Slicer{
		maxDepth:    defaultMaxDepth,
		tokenBudget: defaultTokenBudget,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Slice classifies message against state and returns a [GraphSlice] no
// larger than the configured token budget.
//
// The slice strategy is chosen by selectSeed; the seed set it produces is
// grown by depth expansion (see expand), then pruned back down (see
// pruneToFit) if the estimated token count still exceeds the budget.
func (s *Slicer) Slice(state *graph.State, message string) *GraphSlice {
	start := time.Now()
	seed := selectSeed(state, message, s.maxDepth)

	nodes, edges := expand(state, seed.nodes, seed.depth)
	tokens := estimateTokens(nodes, edges)
	depth := seed.depth

	if tokens > s.tokenBudget {
		depth, nodes, edges = pruneToFit(state, seed.nodes, seed.depth, s.tokenBudget)
		tokens = estimateTokens(nodes, edges)
	}

	return &GraphSlice{
		Task:            seed.task,
		Focus:           seed.focus,
		Depth:           depth,
		Nodes:           nodes,
		Edges:           edges,
		EstimatedTokens: tokens,
		SliceDuration:   time.Since(start),
	}
}

// Serialize renders slice as the human-readable, non-Format-E text injected
// into the Current graph state prompt section when a slicer is active.
func Serialize(slice *GraphSlice) string {
	return serialize(slice.Nodes, slice.Edges)
}
