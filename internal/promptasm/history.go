package promptasm

import (
	"fmt"
	"strings"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// renderHistory renders the last limit messages as "ROLE: text" lines, one
// per message, oldest first. Returns "" when messages is empty or limit is
// non-positive.
func renderHistory(messages []graph.Message, limit int) string {
	if len(messages) == 0 || limit <= 0 {
		return ""
	}

	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", strings.ToUpper(string(m.Role)), m.Content)
	}
	return b.String()
}
