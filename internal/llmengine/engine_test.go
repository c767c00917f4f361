package llmengine

import (
	"context"
	"strings"
	"testing"

	"github.com/flowtwo/graphforge/internal/promptasm"
	"github.com/flowtwo/graphforge/internal/tools"
	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/provider/llm"
	llmmock "github.com/flowtwo/graphforge/pkg/provider/llm/mock"
	"github.com/flowtwo/graphforge/pkg/unifieddata"
)

// fakeData is a minimal in-memory stand-in for [DataService].
type fakeData struct {
	version       int64
	cacheHit      *unifieddata.CacheRecord
	cacheErr      error
	cachedQueries []string
	episodes      int
}

func (f *fakeData) CheckCache(ctx context.Context, query string, graphVersion int64) (*unifieddata.CacheRecord, bool, error) {
	if f.cacheErr != nil {
		return nil, false, f.cacheErr
	}
	if f.cacheHit != nil {
		return f.cacheHit, true, nil
	}
	return nil, false, nil
}

func (f *fakeData) CacheResponse(ctx context.Context, query string, graphVersion int64, response, operations string) error {
	f.cachedQueries = append(f.cachedQueries, query)
	return nil
}

func (f *fakeData) StoreEpisode(ctx context.Context, agentID, task string, success bool, output, critique string) error {
	f.episodes++
	return nil
}

func (f *fakeData) GetVersion() int64 { return f.version }

func (f *fakeData) ToGraphState() *graph.State { return graph.NewState() }

// sequencedProvider returns a distinct set of chunks on each successive
// StreamCompletion call, modeling a multi-iteration tool-use loop.
type sequencedProvider struct {
	calls  int
	turns  [][]llm.Chunk
	tokens int
}

func (p *sequencedProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	chunks := p.turns[p.calls]
	p.calls++
	ch := make(chan llm.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *sequencedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, nil
}

func (p *sequencedProvider) CountTokens(messages []llm.Message) (int, error) { return p.tokens, nil }

func (p *sequencedProvider) Capabilities() llm.ModelCapabilities { return llm.ModelCapabilities{} }

func TestProcessRequestStream_CacheHitShortCircuits(t *testing.T) {
	t.Parallel()

	data := &fakeData{version: 3, cacheHit: &unifieddata.CacheRecord{Response: "cached answer"}}
	provider := &llmmock.Provider{}
	engine := New(provider, promptasm.NewAssembler(), tools.New(), data)

	var chunks []Chunk
	err := engine.ProcessRequestStream(context.Background(), Request{Message: "hi"}, func(c Chunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("ProcessRequestStream() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2 (text + complete)", len(chunks))
	}
	if chunks[0].Type != ChunkText || chunks[0].Text != "cached answer" {
		t.Errorf("chunks[0] = %+v, want cached text", chunks[0])
	}
	if chunks[1].Type != ChunkComplete || !chunks[1].Response.CacheHit {
		t.Errorf("chunks[1] = %+v, want a complete chunk with CacheHit=true", chunks[1])
	}
	if len(provider.StreamCalls) != 0 {
		t.Error("cache hit should never open a provider stream")
	}
}

func TestProcessRequestStream_EmitsTextAndSuppressesOperationsBlock(t *testing.T) {
	t.Parallel()

	data := &fakeData{}
	provider := &sequencedProvider{
		turns: [][]llm.Chunk{
			{
				{Text: "Sure, here's the plan.\n\n<operations>\n"},
				{Text: "+ Login.UC.001|Log in\n</operations>\n\nDone."},
			},
		},
	}
	engine := New(provider, promptasm.NewAssembler(), tools.New(), data, WithModel("test-model"))

	var texts, contents []string
	var final *Response
	err := engine.ProcessRequestStream(context.Background(), Request{Message: "add a use case"}, func(c Chunk) {
		switch c.Type {
		case ChunkText:
			texts = append(texts, c.Text)
		case ChunkContent:
			contents = append(contents, c.Text)
		case ChunkComplete:
			final = c.Response
		}
	})
	if err != nil {
		t.Fatalf("ProcessRequestStream() error = %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d, want 1 closed operations block", len(contents))
	}
	for _, tx := range texts {
		if containsTag(tx) {
			t.Errorf("text chunk %q leaked operations-block content", tx)
		}
	}
	if final == nil {
		t.Fatal("final response = nil")
	}
	if final.Operations == nil {
		t.Fatal("final.Operations = nil, want the parsed block")
	}
	if final.Model != "test-model" {
		t.Errorf("final.Model = %q, want test-model", final.Model)
	}
	if data.episodes != 1 {
		t.Errorf("episodes stored = %d, want 1", data.episodes)
	}
	if len(data.cachedQueries) != 1 {
		t.Errorf("cached queries = %v, want one entry", data.cachedQueries)
	}
}

func TestProcessRequestStream_OpenTagSplitAcrossDeltasIsNeverLeaked(t *testing.T) {
	t.Parallel()

	data := &fakeData{}
	provider := &sequencedProvider{
		turns: [][]llm.Chunk{
			{
				{Text: "Hello <operat"},
				{Text: "ions>\n+ Login.UC.001|Log in\n</operat"},
				{Text: "ions>\n\nDone."},
			},
		},
	}
	engine := New(provider, promptasm.NewAssembler(), tools.New(), data, WithModel("test-model"))

	var texts, contents []string
	err := engine.ProcessRequestStream(context.Background(), Request{Message: "add a use case"}, func(c Chunk) {
		switch c.Type {
		case ChunkText:
			texts = append(texts, c.Text)
		case ChunkContent:
			contents = append(contents, c.Text)
		}
	})
	if err != nil {
		t.Fatalf("ProcessRequestStream() error = %v", err)
	}

	for _, tx := range texts {
		if strings.Contains(tx, "<operat") || containsTag(tx) {
			t.Errorf("text chunk %q leaked a partial or complete operations tag", tx)
		}
	}
	if joined := strings.Join(texts, ""); joined != "Hello \n\nDone." {
		t.Errorf("joined plain text = %q, want %q", joined, "Hello \n\nDone.")
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d, want 1 closed operations block", len(contents))
	}
}

func TestProcessRequestStream_ToolUseLoopReopensStream(t *testing.T) {
	t.Parallel()

	data := &fakeData{}
	provider := &sequencedProvider{
		turns: [][]llm.Chunk{
			{{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{{ID: "call1", Name: "graph_query", Arguments: `{"queryType":"nodes"}`}}}},
			{{Text: "Found nothing relevant."}},
		},
	}
	registry := tools.New()
	registry.Register(tools.Tool{
		Definition: llm.ToolDefinition{Name: "graph_query"},
		Handler: func(ctx context.Context, args string) (string, error) {
			return `[]`, nil
		},
	})
	engine := New(provider, promptasm.NewAssembler(), registry, data)

	var final *Response
	err := engine.ProcessRequestStream(context.Background(), Request{Message: "what nodes exist?"}, func(c Chunk) {
		if c.Type == ChunkComplete {
			final = c.Response
		}
	})
	if err != nil {
		t.Fatalf("ProcessRequestStream() error = %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("provider.calls = %d, want 2 (initial + post-tool-call)", provider.calls)
	}
	if final == nil || final.TextResponse != "Found nothing relevant." {
		t.Errorf("final = %+v, want the second turn's text", final)
	}
}

func TestProcessRequestStream_ProviderStreamErrorAborts(t *testing.T) {
	t.Parallel()

	data := &fakeData{}
	provider := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{FinishReason: "error", Text: "boom"}},
	}
	engine := New(provider, promptasm.NewAssembler(), tools.New(), data)

	var gotComplete bool
	err := engine.ProcessRequestStream(context.Background(), Request{Message: "x"}, func(c Chunk) {
		if c.Type == ChunkComplete {
			gotComplete = true
		}
	})
	if err == nil {
		t.Fatal("ProcessRequestStream() error = nil, want a stream error")
	}
	if gotComplete {
		t.Error("a provider stream error must never emit a complete chunk")
	}
}

func containsTag(s string) bool {
	return strings.Contains(s, "<operations>") || strings.Contains(s, "</operations>")
}
