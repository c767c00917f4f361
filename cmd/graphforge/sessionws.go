package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/flowtwo/graphforge/internal/llmengine"
	"github.com/flowtwo/graphforge/internal/observe"
	"github.com/flowtwo/graphforge/internal/orchestrator"
)

// sessionHandler upgrades each connection to a line-oriented WebSocket: every
// received text frame is one Session.HandleLine input, and every streamed
// llmengine.Chunk is written back as its own text frame. This is
// deliberately separate from the broadcast Server's structured JSON
// protocol — a viewer subscribes to graph/chat notifications, while a
// session connection is a single user's interactive conversation with one
// (workspaceId, systemId) pair.
//
// The query parameters workspace, system, chat, and user select the Session
// to create; chat and user default to the connection's client id when
// omitted.
type sessionHandler struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

func newSessionHandler(orch *orchestrator.Orchestrator, logger *slog.Logger) *sessionHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &sessionHandler{orch: orch, logger: logger}
}

func (h *sessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace")
	systemID := r.URL.Query().Get("system")
	if workspaceID == "" || systemID == "" {
		http.Error(w, "workspace and system query parameters are required", http.StatusBadRequest)
		return
	}

	clientID := uuid.NewString()
	chatID := r.URL.Query().Get("chat")
	if chatID == "" {
		chatID = clientID
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = clientID
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("sessionws: accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session ended")

	session := h.orch.NewSession(workspaceID, systemID, chatID, userID)
	ctx := r.Context()
	defer observe.DefaultMetrics().ActiveSessions.Add(context.Background(), -1)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		line := string(data)

		onChunk := func(chunk llmengine.Chunk) {
			h.writeChunk(ctx, conn, chunk)
		}

		reply, err := session.HandleLine(ctx, line, onChunk)
		if err != nil {
			h.writeText(ctx, conn, "error: "+err.Error())
			continue
		}
		if reply != "" {
			h.writeText(ctx, conn, reply)
		}
		if line == "exit" {
			return
		}
	}
}

// writeChunk forwards one streamed llmengine.Chunk as a text frame. Non-empty
// Text and Content chunks are written as-is; the terminal Complete chunk is
// always answered with a "[done]" frame so the client can tell the turn is
// over. Other chunk types are not forwarded.
func (h *sessionHandler) writeChunk(ctx context.Context, conn *websocket.Conn, chunk llmengine.Chunk) {
	switch chunk.Type {
	case llmengine.ChunkText, llmengine.ChunkContent:
		if chunk.Text != "" {
			h.writeText(ctx, conn, chunk.Text)
		}
	case llmengine.ChunkComplete:
		h.writeText(ctx, conn, "[done]")
	}
}

func (h *sessionHandler) writeText(ctx context.Context, conn *websocket.Conn, text string) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, []byte(text)); err != nil {
		h.logger.Warn("sessionws: write failed", "error", err)
	}
}
