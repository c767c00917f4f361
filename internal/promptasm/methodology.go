package promptasm

import (
	"fmt"
	"os"
	"strings"
)

// defaultCriticalErrors lists mistakes the methodology guide warns against
// when no rules file overrides them.
var defaultCriticalErrors = []string{
	"Inventing a semantic ID for a node that was never added in this batch or a prior one.",
	"Adding an edge whose source or target does not exist yet and is not added earlier in the same batch.",
	"Emitting prose and Format E operations interleaved in the same line.",
	"Silently dropping a previously active requirement or test when refining a use case.",
}

// LoadMethodologyRules reads a rules file whose contents replace the
// built-in critical-errors list. The file is treated as one rule per
// non-blank line; lines beginning with '#' are comments and are skipped.
func LoadMethodologyRules(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("promptasm: read methodology rules %q: %w", path, err)
	}

	var rules []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return rules, nil
}

// Methodology returns the fixed methodology-guide section: decomposition
// strategy, best practices, a critical-errors list (criticalErrors, or the
// built-in default when nil), and a pre-submission checklist.
func Methodology(criticalErrors []string) string {
	if criticalErrors == nil {
		criticalErrors = defaultCriticalErrors
	}

	var b strings.Builder

	b.WriteString("Decomposition strategy: work top-down. Start from the System, break it into Use Cases, ")
	b.WriteString("break each Use Case into a Function Chain of Functions, then attach Requirements, Tests, ")
	b.WriteString("Modules, and Schemas as the design matures. Prefer small, incremental diffs over large rewrites.\n\n")

	b.WriteString("Best practices:\n")
	b.WriteString("- Reuse an existing node instead of creating a near-duplicate; search the current graph state first.\n")
	b.WriteString("- Keep descriptions short and testable; put detail in attributes rather than prose.\n")
	b.WriteString("- When removing a node, remove its now-dangling edges in the same batch.\n\n")

	b.WriteString("Critical errors to avoid:\n")
	for _, e := range criticalErrors {
		fmt.Fprintf(&b, "- %s\n", e)
	}

	b.WriteString("\nPre-submission checklist:\n")
	b.WriteString("- Every semantic ID follows Name.TypeAbbr.NNN with a type abbreviation from the ontology above.\n")
	b.WriteString("- Every edge's source and target exist already or are added earlier in this same diff.\n")
	b.WriteString("- The diff is wrapped in a single <operations> block with '## Nodes' before '## Edges'.\n")

	return b.String()
}
