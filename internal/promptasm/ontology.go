package promptasm

import (
	"fmt"
	"strings"
)

var nodeTypeGuide = []struct {
	abbrev string
	name   string
	use    string
}{
	{"SY", "System", "the top-level system or subsystem under design"},
	{"UC", "Use Case", "a user-facing interaction the system supports"},
	{"AC", "Actor", "a human or external system that initiates use cases"},
	{"FC", "Function Chain", "an ordered group of functions composing a use case"},
	{"FN", "Function", "a single system behavior or capability"},
	{"FL", "Flow", "a data or control flow exchanged between functions"},
	{"RQ", "Requirement", "a testable statement the system must satisfy"},
	{"TE", "Test", "a verification procedure for one or more requirements"},
	{"MO", "Module", "an implementation unit functions are allocated to"},
	{"SC", "Schema", "a data structure definition referenced by flows"},
}

var edgeTypeGuide = []struct {
	arrow string
	name  string
	use   string
}{
	{"cp", "compose", "parent contains/decomposes into child"},
	{"io", "io", "a function reads or writes a flow"},
	{"sat", "satisfy", "a function or module satisfies a requirement"},
	{"ver", "verify", "a test verifies a requirement"},
	{"alc", "allocate", "a function is allocated to a module"},
	{"rel", "relation", "a generic, untyped association"},
}

// Ontology returns the fixed ontology-specification section: the ten node
// types, six edge types, Format E line grammar, and modification rules the
// model must follow when proposing graph mutations.
func Ontology() string {
	var b strings.Builder

	b.WriteString("You edit a typed systems-engineering graph through a compact diff format called Format E.\n\n")

	b.WriteString("Node types (two-letter abbreviation used in every semantic ID, e.g. ProcessPayment.FN.001):\n")
	for _, t := range nodeTypeGuide {
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.abbrev, t.name, t.use)
	}

	b.WriteString("\nEdge types (arrow token used between two semantic IDs):\n")
	for _, t := range edgeTypeGuide {
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.arrow, t.name, t.use)
	}

	b.WriteString("\nFormat E syntax, wrapped in <operations>...</operations>:\n")
	b.WriteString("- Add node:    + SemanticId|Description [key:value, key:value]\n")
	b.WriteString("- Remove node: - SemanticId\n")
	b.WriteString("- Update node: ~ SemanticId|Description [key:value]   (merges into existing fields; omitted fields are preserved)\n")
	b.WriteString("- Add edge:    + SourceId -arrow-> TargetId\n")
	b.WriteString("- Remove edge: - SourceId -arrow-> TargetId\n")
	b.WriteString("- Operations are grouped under '## Nodes' and '## Edges' headers, applied top to bottom within each group.\n")
	b.WriteString("- Lines starting with '#' (other than the two group headers) are comments and are ignored.\n")

	b.WriteString("\nModification rules:\n")
	b.WriteString("- An edge's source and target must already exist, or be added earlier in the same '## Nodes' group.\n")
	b.WriteString("- Removing a node does not remove its edges; remove them explicitly in the same batch if they would otherwise dangle.\n")
	b.WriteString("- Only propose operations inside an <operations> block; prose explaining your reasoning belongs outside it.\n")

	return b.String()
}
