package promptasm

import (
	"github.com/flowtwo/graphforge/internal/ctxslice"
	"github.com/flowtwo/graphforge/pkg/formate"
	"github.com/flowtwo/graphforge/pkg/graph"
)

const defaultChatHistoryLimit = 20

// Option is a functional option for [NewAssembler].
type Option func(*Assembler)

// WithMethodologyRules overrides the built-in critical-errors list with
// rules, typically loaded via [LoadMethodologyRules].
func WithMethodologyRules(rules []string) Option {
	return func(a *Assembler) { a.criticalErrors = rules }
}

// WithChatHistoryLimit caps how many trailing chat messages the "Chat
// history" section includes. Defaults to 20.
func WithChatHistoryLimit(n int) Option {
	return func(a *Assembler) { a.chatHistoryLimit = n }
}

// Assembler produces the ordered list of cacheable prompt sections sent
// ahead of a user turn. It is stateless aside from its configuration and
// safe for concurrent use.
type Assembler struct {
	criticalErrors   []string
	chatHistoryLimit int
}

// NewAssembler creates an [Assembler] with sensible defaults. Apply
// [Option] values to override them.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{chatHistoryLimit: defaultChatHistoryLimit}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble returns the ordered prompt sections for one LLM turn.
//
// When slice is non-nil, its human-readable serialization is used for the
// "Current graph state" section instead of a full-graph Format E
// serialization — this is the hook the Context Slicer's token-budgeted
// subgraph extraction feeds into. viewContext, if non-empty, is forwarded
// to the full-graph serialization only (a slice carries no view context of
// its own). history supplies the optional trailing chat-history section;
// an empty or nil history omits the section entirely rather than rendering
// an empty header.
func (a *Assembler) Assemble(state *graph.State, slice *ctxslice.GraphSlice, viewContext string, history []graph.Message) []Section {
	sections := []Section{
		{Name: "Ontology specification", Ephemeral: true, Text: Ontology()},
		{Name: "Methodology guide", Ephemeral: true, Text: Methodology(a.criticalErrors)},
		{Name: "Current graph state", Ephemeral: true, Text: a.graphStateText(state, slice, viewContext)},
	}

	if historyText := renderHistory(history, a.chatHistoryLimit); historyText != "" {
		sections = append(sections, Section{Name: "Chat history", Ephemeral: true, Text: historyText})
	}

	return sections
}

func (a *Assembler) graphStateText(state *graph.State, slice *ctxslice.GraphSlice, viewContext string) string {
	if slice != nil {
		return ctxslice.Serialize(slice)
	}
	return formate.SerializeGraph(state, viewContext)
}
