package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowtwo/graphforge/internal/broadcast"
	"github.com/flowtwo/graphforge/internal/canvas"
	"github.com/flowtwo/graphforge/internal/llmengine"
	"github.com/flowtwo/graphforge/internal/observe"
	"github.com/flowtwo/graphforge/pkg/graph"
)

// Session is one viewer's conversation with one (workspaceId, systemId)
// pair: it owns the canvas viewer state (view/filter/selection/focus) and
// a rolling chat transcript, and routes every incoming line to the right
// subsystem. Sessions are cheap — a Session per connected terminal or
// WebSocket client is expected — and hold no long-lived store connections
// of their own; all of that lives on the shared Orchestrator.
type Session struct {
	orch *Orchestrator

	WorkspaceID string
	SystemID    string
	ChatID      string
	UserID      string

	canvas  *canvas.Controller
	history []graph.Message
}

// NewSession returns a Session bound to (workspaceID, systemID) for one
// chat/viewer, with a fresh canvas viewer state.
func (o *Orchestrator) NewSession(workspaceID, systemID, chatID, userID string) *Session {
	observe.DefaultMetrics().ActiveSessions.Add(context.Background(), 1)
	return &Session{
		orch:        o,
		WorkspaceID: workspaceID,
		SystemID:    systemID,
		ChatID:      chatID,
		UserID:      userID,
		canvas:      canvas.NewController(),
	}
}

// HandleLine dispatches one line of input from a session's user: the six
// canvas slash-commands render directly; /save, /help, /stats, /commit,
// and exit are handled by the orchestrator itself; a directly typed Format E
// diff block is applied as a user edit; any other line beginning with a
// slash is rejected as an unknown command; anything else is a chat message
// routed to the LLM Engine via HandleChat, whose chunks are forwarded to
// onChunk.
//
// HandleLine returns a reply string for every command EXCEPT a chat
// message, which streams its reply through onChunk instead and returns an
// empty string.
func (s *Session) HandleLine(ctx context.Context, line string, onChunk llmengine.OnChunk) (string, error) {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "exit":
		return "session ended", nil
	case trimmed == "/save":
		if err := s.orch.Persist(ctx, s.WorkspaceID, s.SystemID); err != nil {
			return "", fmt.Errorf("orchestrator: /save: %w", err)
		}
		return "saved", nil
	case trimmed == "/help":
		return helpText, nil
	case trimmed == "/stats":
		return s.statsText(ctx)
	case trimmed == "/commit":
		return s.commit(ctx)
	case canvasCommand(trimmed):
		return s.canvas.HandleCommand(trimmed)
	case isDiffBlock(trimmed):
		return s.applyUserDiff(ctx, trimmed)
	case strings.HasPrefix(trimmed, "/"):
		return "", fmt.Errorf("orchestrator: unknown command %q", strings.Fields(trimmed)[0])
	default:
		s.appendHistory(graph.RoleUser, trimmed, nil)
		return "", s.HandleChat(ctx, trimmed, onChunk)
	}
}

// isDiffBlock reports whether line looks like a directly typed Format E
// operations block rather than a chat message: a "## Nodes"/"## Edges"
// section header, or one of the optional leading tags a diff may start
// with (<operations>, <base_snapshot>, <view_context>).
func isDiffBlock(line string) bool {
	upper := strings.ToUpper(line)
	if strings.Contains(upper, "## NODES") || strings.Contains(upper, "## EDGES") {
		return true
	}
	for _, prefix := range []string{"<operations>", "<base_snapshot>", "<view_context>"} {
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return true
		}
	}
	return false
}

// canvasCommand reports whether line names one of the Canvas Controller's
// six recognized slash-commands, so the orchestrator can route it there
// without the Controller needing to know about everything else that
// begins with a slash (/save, /help, /stats, /commit).
func canvasCommand(line string) bool {
	for _, prefix := range []string{"/view", "/filter", "/select", "/focus", "/clear-filter", "/clear-selection"} {
		if line == prefix || strings.HasPrefix(line, prefix+" ") {
			return true
		}
	}
	return false
}

// HandleChat routes message to the LLM Engine bound to this session's
// (workspaceId, systemId), streaming chunks to onChunk as they arrive. If
// the final response carries an operations block, it is parsed and applied
// before the terminal chunk reaches onChunk — exactly as if the user had
// typed the diff directly, so viewers see a single coherent graph_update.
func (s *Session) HandleChat(ctx context.Context, message string, onChunk llmengine.OnChunk) error {
	eng, err := s.orch.engine(ctx, s.WorkspaceID, s.SystemID)
	if err != nil {
		return err
	}

	svc, err := s.orch.Data(ctx, s.WorkspaceID, s.SystemID)
	if err != nil {
		return err
	}

	req := llmengine.Request{
		Message:     message,
		ChatID:      s.ChatID,
		WorkspaceID: s.WorkspaceID,
		SystemID:    s.SystemID,
		UserID:      s.UserID,
		ViewContext: string(s.canvas.View()),
		ChatHistory: s.history,
		ContextHint: s.orch.slicer.Slice(svc.ToGraphState(), message),
	}

	wrapped := func(chunk llmengine.Chunk) {
		if chunk.Type == llmengine.ChunkComplete && chunk.Response != nil {
			s.appendHistory(graph.RoleAssistant, chunk.Response.TextResponse, chunk.Response.Operations)
			if chunk.Response.Operations != nil {
				if err := s.orch.applyOperations(ctx, s.WorkspaceID, s.SystemID, s.ChatID, s.UserID, *chunk.Response.Operations, broadcast.OriginLLMOperation); err != nil {
					s.orch.logger.Error("orchestrator: apply llm operations failed", "error", err)
				}
			}
		}
		onChunk(chunk)
	}

	return eng.ProcessRequestStream(ctx, req, wrapped)
}

// applyUserDiff treats trimmed as a direct Format E edit typed by the user
// (not wrapped in <operations> tags, per the interactive-shell convention)
// and applies it the same way an LLM-produced operations block is applied.
func (s *Session) applyUserDiff(ctx context.Context, trimmed string) (string, error) {
	if err := s.orch.applyOperations(ctx, s.WorkspaceID, s.SystemID, s.ChatID, s.UserID, trimmed, broadcast.OriginUserEdit); err != nil {
		return "", err
	}
	return "applied", nil
}

// commit is an alias for /save kept for parity with the interactive shell's
// vocabulary; it persists immediately rather than waiting for shutdown.
func (s *Session) commit(ctx context.Context) (string, error) {
	if err := s.orch.Persist(ctx, s.WorkspaceID, s.SystemID); err != nil {
		return "", fmt.Errorf("orchestrator: /commit: %w", err)
	}
	return "committed", nil
}

// statsText reports the current graph's size and version for this pair.
func (s *Session) statsText(ctx context.Context) (string, error) {
	svc, err := s.orch.Data(ctx, s.WorkspaceID, s.SystemID)
	if err != nil {
		return "", err
	}
	state := svc.ToGraphState()
	dirty := svc.Store().Dirty()
	return fmt.Sprintf("nodes=%d edges=%d version=%d dirty_nodes=%d dirty_edges=%d",
		len(state.Nodes), len(state.Edges), state.Version, len(dirty.Nodes), len(dirty.Edges)), nil
}

func (s *Session) appendHistory(role graph.MessageRole, content string, operations *string) {
	s.history = append(s.history, graph.Message{
		MessageID:  fmt.Sprintf("%s-%d", s.ChatID, len(s.history)),
		ChatID:     s.ChatID,
		Role:       role,
		Content:    content,
		Operations: operations,
		Timestamp:  time.Now().UTC(),
	})
}

const helpText = `commands:
  /view <name>           switch canvas view (hierarchy, allocation, traceability, dependency, fchain, all)
  /filter <args>         set node/edge filters
  /select <id...>        set the selection set
  /focus <id>            focus a node
  /clear-filter          clear all filters
  /clear-selection       clear the selection
  /save, /commit         persist dirty nodes/edges and write an audit log entry
  /stats                 report graph size and dirty-set counts
  <operations block>     apply a Format E diff directly
  exit                   end the session
  anything else          sent to the LLM as a chat message`
