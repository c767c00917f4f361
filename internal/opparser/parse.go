// Package opparser extracts Format E <operations> blocks from LLM response
// text, both from a completed response and incrementally from a streaming
// one.
package opparser

import (
	"regexp"
	"strings"
)

// blockPattern matches an <operations>...</operations> block, case
// insensitive, spanning newlines.
var blockPattern = regexp.MustCompile(`(?is)<operations>(.*?)</operations>`)

var collapseNewlines = regexp.MustCompile(`\n{3,}`)

// Result is the outcome of parsing one completed LLM response.
type Result struct {
	// TextResponse is the response with every <operations> block removed,
	// trimmed, with runs of three or more newlines collapsed to two.
	TextResponse string

	// Operations is the concatenation of every block's inner content, or
	// nil when the response contained no operations block at all.
	Operations *string
}

// Parse scans text for every <operations>...</operations> block (there may
// be zero, one, or more) and separates prose from mutation operations.
func Parse(text string) Result {
	matches := blockPattern.FindAllStringSubmatch(text, -1)

	var operations *string
	if len(matches) > 0 {
		parts := make([]string, len(matches))
		for i, m := range matches {
			parts[i] = strings.TrimSpace(m[1])
		}
		joined := strings.Join(parts, "\n")
		operations = &joined
	}

	stripped := blockPattern.ReplaceAllString(text, "")
	stripped = strings.TrimSpace(stripped)
	stripped = collapseNewlines.ReplaceAllString(stripped, "\n\n")

	return Result{TextResponse: stripped, Operations: operations}
}
