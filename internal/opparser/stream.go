package opparser

import "strings"

var (
	openTag  = "<operations>"
	closeTag = "</operations>"
)

// IsInsideOperationsBlock reports whether partialText's last tag is an
// unclosed <operations> open tag — i.e. more opens than closes have been
// seen so far. The streaming engine uses this to suppress emitting plain
// "text" chunks while the model is mid-way through writing a block, so a
// half-written Format E diff never reaches the chat transcript as prose.
func IsInsideOperationsBlock(partialText string) bool {
	lower := strings.ToLower(partialText)
	return strings.Count(lower, openTag) > strings.Count(lower, closeTag)
}

// BlockExtractor incrementally surfaces <operations> blocks from a growing
// streamed text buffer, returning each complete block exactly once as soon
// as its closing tag arrives.
type BlockExtractor struct {
	consumed int
}

// NewBlockExtractor returns a [BlockExtractor] ready to scan from the start
// of a stream.
func NewBlockExtractor() *BlockExtractor {
	return &BlockExtractor{}
}

// ExtractComplete scans the full accumulated buffer (not just newly
// appended text) and returns the inner content of every block that closed
// since the last call.
func (e *BlockExtractor) ExtractComplete(buffer string) []string {
	indices := blockPattern.FindAllStringSubmatchIndex(buffer, -1)

	var newBlocks []string
	for _, m := range indices {
		start, end, innerStart, innerEnd := m[0], m[1], m[2], m[3]
		if start < e.consumed {
			continue
		}
		newBlocks = append(newBlocks, strings.TrimSpace(buffer[innerStart:innerEnd]))
		if end > e.consumed {
			e.consumed = end
		}
	}
	return newBlocks
}
