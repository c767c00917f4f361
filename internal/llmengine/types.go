// Package llmengine drives one streaming LLM turn end to end: cache probe,
// prompt assembly, the provider tool-call loop, response parsing, and the
// cache/episode write-back — emitting chunks to a caller-supplied callback
// as they become available rather than waiting for the full turn.
package llmengine

import (
	"github.com/flowtwo/graphforge/internal/ctxslice"
	"github.com/flowtwo/graphforge/pkg/graph"
)

// Request carries everything one turn needs.
type Request struct {
	Message     string
	ChatID      string
	WorkspaceID string
	SystemID    string
	UserID      string
	ViewContext string
	ChatHistory []graph.Message
	ContextHint *ctxslice.GraphSlice
}

// ChunkType discriminates the variants of [Chunk].
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkContent  ChunkType = "content"
	ChunkComplete ChunkType = "complete"
)

// Chunk is one unit of streamed output. Exactly one of Text or Response is
// meaningful, depending on Type.
type Chunk struct {
	Type     ChunkType
	Text     string
	Response *Response
}

// Usage is the token accounting of one turn. The engine fills Input and
// Output from the provider's token counts; the cache read/write fields are
// not filled by the engine and stay zero.
type Usage struct {
	Input            int
	Output           int
	CacheReadTokens  int
	CacheWriteTokens int
}

// Response is the final, fully assembled outcome of one turn.
type Response struct {
	TextResponse string
	Operations   *string
	Usage        Usage
	CacheHit     bool
	Model        string
	ResponseID   string
}

// OnChunk is called once per emitted [Chunk], in order, on the calling
// goroutine of [Engine.ProcessRequestStream].
type OnChunk func(Chunk)

// toolLoopCap bounds the number of tool-use round-trips in a single turn.
const toolLoopCap = 5

// episodeAgentID identifies this engine's episodes in the Unified Data
// Service's episodic log.
const episodeAgentID = "llm-engine"
