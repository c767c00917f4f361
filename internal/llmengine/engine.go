package llmengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flowtwo/graphforge/internal/observe"
	"github.com/flowtwo/graphforge/internal/opparser"
	"github.com/flowtwo/graphforge/internal/promptasm"
	"github.com/flowtwo/graphforge/internal/resilience"
	"github.com/flowtwo/graphforge/internal/tools"
	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/provider/llm"
	"github.com/flowtwo/graphforge/pkg/unifieddata"
)

// DataService is the subset of [unifieddata.Service] the engine needs: a
// response cache, an episodic log, and read access to the graph it answers
// questions about.
type DataService interface {
	CheckCache(ctx context.Context, query string, graphVersion int64) (*unifieddata.CacheRecord, bool, error)
	CacheResponse(ctx context.Context, query string, graphVersion int64, response, operations string) error
	StoreEpisode(ctx context.Context, agentID, task string, success bool, output, critique string) error
	GetVersion() int64
	ToGraphState() *graph.State
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithCircuitBreaker overrides the default circuit breaker guarding the
// provider's stream-open call.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Engine) { e.breaker = cb }
}

// WithModel sets the model name reported on every [Response].
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithMetrics overrides the default package-level [observe.Metrics] instance,
// mainly so tests can inject one backed by a manual reader.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine drives one streaming turn at a time. A single Engine may be reused
// across turns and across (workspaceId, systemId) pairs since all
// per-turn state lives on the stack of [Engine.ProcessRequestStream].
type Engine struct {
	provider  llm.Provider
	assembler *promptasm.Assembler
	registry  *tools.Registry
	data      DataService

	logger  *slog.Logger
	breaker *resilience.CircuitBreaker
	model   string
	metrics *observe.Metrics
}

// New returns an [Engine] ready to process requests against data, driving
// provider through assembler-built prompts and registry-registered tools.
func New(provider llm.Provider, assembler *promptasm.Assembler, registry *tools.Registry, data DataService, opts ...Option) *Engine {
	e := &Engine{
		provider:  provider,
		assembler: assembler,
		registry:  registry,
		data:      data,
		logger:    slog.New(slog.DiscardHandler),
		breaker:   resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "llmengine.provider"}),
		metrics:   observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessRequestStream runs one turn of req, invoking onChunk once per
// emitted chunk in order. It returns an error only for failures that abort
// the turn outright (a provider transport error); every other failure mode
// is absorbed and surfaced as part of a normal response.
func (e *Engine) ProcessRequestStream(ctx context.Context, req Request, onChunk OnChunk) error {
	start := time.Now()
	defer func() {
		e.metrics.LLMStreamDuration.Record(ctx, time.Since(start).Seconds())
	}()

	versionAtStart := e.data.GetVersion()

	cached, hit, err := e.data.CheckCache(ctx, req.Message, versionAtStart)
	if err != nil {
		e.logger.Warn("llmengine: cache probe failed, treating as miss", "error", err)
	} else {
		e.metrics.RecordCacheResult(ctx, hit)
	}
	if err == nil && hit {
		onChunk(Chunk{Type: ChunkText, Text: cached.Response})
		onChunk(Chunk{Type: ChunkComplete, Response: &Response{
			TextResponse: cached.Response,
			Operations:   nonEmptyPtr(cached.Operations),
			CacheHit:     true,
			Model:        e.model,
		}})
		return nil
	}

	sections := e.assembler.Assemble(e.data.ToGraphState(), req.ContextHint, req.ViewContext, req.ChatHistory)
	systemPrompt := renderSystemPrompt(sections)

	messages := historyToMessages(req.ChatHistory)
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	buffer, finalErr := e.runToolLoop(ctx, systemPrompt, messages, onChunk)
	if finalErr != nil {
		return finalErr
	}

	parsed := opparser.Parse(buffer)

	response := &Response{
		TextResponse: parsed.TextResponse,
		Operations:   parsed.Operations,
		Model:        e.model,
	}
	if usage, err := e.estimateUsage(systemPrompt, messages, parsed.TextResponse); err == nil {
		response.Usage = usage
	}

	operationsText := ""
	if parsed.Operations != nil {
		operationsText = *parsed.Operations
	}
	if err := e.data.CacheResponse(ctx, req.Message, versionAtStart, response.TextResponse, operationsText); err != nil {
		e.logger.Warn("llmengine: failed to cache response", "error", err)
	}

	critique := "completed without producing graph operations"
	if parsed.Operations != nil {
		critique = "completed and produced graph operations"
	}
	if err := e.data.StoreEpisode(ctx, episodeAgentID, req.Message, parsed.Operations != nil, response.TextResponse, critique); err != nil {
		e.logger.Warn("llmengine: failed to store episode", "error", err)
	}

	onChunk(Chunk{Type: ChunkComplete, Response: response})
	return nil
}

// runToolLoop drives the provider's streaming tool-use protocol to
// completion, emitting text/content chunks as they become available and
// returning the full accumulated text buffer once the model stops
// requesting tools (or the iteration cap is reached).
func (e *Engine) runToolLoop(ctx context.Context, systemPrompt string, messages []llm.Message, onChunk OnChunk) (string, error) {
	var buffer string
	iterationsUsed := 0
	defer func() {
		e.metrics.ToolLoopIterations.Record(ctx, int64(iterationsUsed))
	}()

	for iteration := 0; iteration < toolLoopCap; iteration++ {
		iterationsUsed = iteration + 1
		req := llm.CompletionRequest{
			Messages:     messages,
			SystemPrompt: systemPrompt,
			Tools:        e.registry.Definitions(),
		}

		var stream <-chan llm.Chunk
		openErr := e.breaker.Execute(func() error {
			ch, err := e.provider.StreamCompletion(ctx, req)
			if err != nil {
				return err
			}
			stream = ch
			return nil
		})
		if openErr != nil {
			return "", fmt.Errorf("llmengine: open completion stream: %w", openErr)
		}

		turnText, toolCalls, streamErr := e.drainStream(stream, onChunk, &buffer)
		if streamErr != nil {
			return "", streamErr
		}

		if len(toolCalls) == 0 {
			break
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: turnText, ToolCalls: toolCalls})
		for _, call := range toolCalls {
			toolStart := time.Now()
			result, err := e.registry.Execute(ctx, call.Name, call.Arguments)
			e.metrics.ToolExecutionDuration.Record(ctx, time.Since(toolStart).Seconds())
			status := "ok"
			if err != nil {
				status = "error"
				result = fmt.Sprintf(`{"is_error":true,"error":%q}`, err.Error())
			}
			e.metrics.RecordToolCall(ctx, call.Name, status)
			messages = append(messages, llm.Message{Role: "tool", Content: result, ToolCallID: call.ID})
		}
	}

	return buffer, nil
}

// drainStream reads every chunk from stream, classifying each text delta as
// either plain prose or part of a Format E operations block, and returns
// this turn's full text plus any tool calls the model requested.
//
// pending holds raw text that arrived but could not yet be classified as
// plain prose because its tail might be the opening fragment of a
// "<operations>" tag split across two provider deltas — it is only emitted
// once a later delta proves it is (or is not) actually a tag.
func (e *Engine) drainStream(stream <-chan llm.Chunk, onChunk OnChunk, buffer *string) (string, []llm.ToolCall, error) {
	extractor := opparser.NewBlockExtractor()
	var turnText string
	var toolCalls []llm.ToolCall
	var pending string

	for chunk := range stream {
		if chunk.FinishReason == "error" {
			return turnText, nil, fmt.Errorf("llmengine: provider stream error: %s", chunk.Text)
		}

		if chunk.Text != "" {
			insideBefore := opparser.IsInsideOperationsBlock(*buffer)
			turnText += chunk.Text
			*buffer += chunk.Text
			insideAfter := opparser.IsInsideOperationsBlock(*buffer)

			newBlocks := extractor.ExtractComplete(*buffer)
			for _, block := range newBlocks {
				onChunk(Chunk{Type: ChunkContent, Text: block})
			}

			switch {
			case !insideBefore && !insideAfter && len(newBlocks) == 0:
				// Not in a block before or after this delta. The combined
				// pending+delta text might still end in a fragment of an
				// opening tag yet to arrive, so only the confirmed-safe
				// prefix is emitted; the rest is held for the next delta.
				window := pending + chunk.Text
				safe, held := splitTrailingPartialTag(window, openTag)
				if safe != "" {
					onChunk(Chunk{Type: ChunkText, Text: safe})
				}
				pending = held
			case !insideBefore && !insideAfter && len(newBlocks) > 0:
				// A whole block opened and closed within this single delta.
				// Any text held from an earlier delta turned out not to be a
				// tag fragment after all, so it is safe to flush now.
				if pending != "" {
					onChunk(Chunk{Type: ChunkText, Text: pending})
					pending = ""
				}
			case !insideBefore && insideAfter:
				// The open tag completed somewhere in pending+delta; only
				// the text before it is plain prose.
				if prefix := textBeforeOpenTag(pending + chunk.Text); prefix != "" {
					onChunk(Chunk{Type: ChunkText, Text: prefix})
				}
				pending = ""
			case insideBefore && !insideAfter:
				// The close tag completed somewhere in this delta (possibly
				// after a partial close tag landed in an earlier delta);
				// everything in the whole buffer after the last close tag
				// is the new pending plain-text window.
				window := textAfterCloseTag(*buffer)
				safe, held := splitTrailingPartialTag(window, openTag)
				if safe != "" {
					onChunk(Chunk{Type: ChunkText, Text: safe})
				}
				pending = held
			}
			// insideBefore && insideAfter: fully inside an open block, suppressed.
		}

		if len(chunk.ToolCalls) > 0 {
			toolCalls = chunk.ToolCalls
		}
	}

	return turnText, toolCalls, nil
}

// estimateUsage approximates token usage via the provider's own
// CountTokens, since streaming [llm.Chunk] values carry no usage field.
func (e *Engine) estimateUsage(systemPrompt string, messages []llm.Message, responseText string) (Usage, error) {
	promptMessages := append([]llm.Message{{Role: "system", Content: systemPrompt}}, messages...)
	input, err := e.provider.CountTokens(promptMessages)
	if err != nil {
		return Usage{}, err
	}
	output, err := e.provider.CountTokens([]llm.Message{{Role: "assistant", Content: responseText}})
	if err != nil {
		return Usage{}, err
	}
	return Usage{Input: input, Output: output}, nil
}

// openTag/closeTag duplicate opparser's unexported tag literals; opparser
// does not export them, so the streaming classifier below matches on its own
// copies.
const (
	openTag  = "<operations>"
	closeTag = "</operations>"
)

// textBeforeOpenTag returns the portion of delta preceding its first
// "<operations>" open tag, case-insensitive.
func textBeforeOpenTag(delta string) string {
	idx := strings.Index(strings.ToLower(delta), openTag)
	if idx < 0 {
		return ""
	}
	return delta[:idx]
}

// textAfterCloseTag returns the portion of s following its last
// "</operations>" close tag, case-insensitive.
func textAfterCloseTag(s string) string {
	lower := strings.ToLower(s)
	idx := strings.LastIndex(lower, closeTag)
	if idx < 0 {
		return ""
	}
	return s[idx+len(closeTag):]
}

// splitTrailingPartialTag splits s into a safe prefix that is certain not to
// be part of tag, and a held suffix that is a strict, non-empty prefix of
// tag (case-insensitive) and so might still grow into a full tag once more
// stream deltas arrive. If s's tail does not match any proper prefix of tag,
// held is empty and safe is all of s.
func splitTrailingPartialTag(s, tag string) (safe, held string) {
	lower := strings.ToLower(s)
	maxLen := len(tag) - 1
	if maxLen > len(s) {
		maxLen = len(s)
	}
	for n := maxLen; n > 0; n-- {
		suffix := lower[len(lower)-n:]
		if strings.HasPrefix(strings.ToLower(tag), suffix) {
			return s[:len(s)-n], s[len(s)-n:]
		}
	}
	return s, ""
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func historyToMessages(history []graph.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func renderSystemPrompt(sections []promptasm.Section) string {
	var out string
	for _, s := range sections {
		if out != "" {
			out += "\n\n"
		}
		out += "### " + s.Name + "\n\n" + s.Text
	}
	return out
}
