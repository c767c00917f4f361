package broadcast

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/flowtwo/graphforge/internal/observe"
)

// shutdownDrain is how long the server waits after broadcasting a shutdown
// message before closing the client connections.
const shutdownDrain = 300 * time.Millisecond

// clientConn is one connected WebSocket client on the server side.
type clientConn struct {
	id   string
	conn *websocket.Conn

	mu   sync.Mutex
	sub  *Subscription // nil until subscribe is received
}

// Server accepts WebSocket connections, tracks each client's subscription,
// and fans out graph_update/chat_update messages to matching clients.
type Server struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*clientConn

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithServerLogger overrides the default no-op logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer returns a [Server] ready to accept connections via [Server.ServeHTTP].
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		logger:     slog.New(slog.DiscardHandler),
		clients:    make(map[string]*clientConn),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request to a WebSocket connection and services it
// until the client disconnects or the server shuts down.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("broadcast: accept failed", "error", err)
		return
	}

	client := &clientConn{id: uuid.NewString(), conn: conn}

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, client.id)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "server closing connection")
	}()

	ctx := r.Context()
	if err := wsjson.Write(ctx, conn, Message{Type: TypeConnected, ClientID: client.id, Timestamp: now()}); err != nil {
		s.logger.Warn("broadcast: failed to send connected", "client", client.id, "error", err)
		return
	}

	s.readLoop(ctx, client)
}

// readLoop receives messages from one client and dispatches them by type.
func (s *Server) readLoop(ctx context.Context, client *clientConn) {
	for {
		var msg Message
		if err := wsjson.Read(ctx, client.conn, &msg); err != nil {
			return
		}

		switch msg.Type {
		case TypeSubscribe:
			s.handleSubscribe(ctx, client, msg)
		case TypeUnsubscribe:
			client.mu.Lock()
			client.sub = nil
			client.mu.Unlock()
		case TypePing:
			_ = wsjson.Write(ctx, client.conn, Message{Type: TypePong, Timestamp: now()})
		case TypeGraphUpdate, TypeChatUpdate:
			client.mu.Lock()
			originSub := client.sub
			client.mu.Unlock()
			scope := Subscription{}
			if originSub != nil {
				scope = *originSub
			}
			s.dispatch(client.id, scope, msg)
		default:
			s.logger.Warn("broadcast: unhandled message type", "type", msg.Type, "client", client.id)
		}
	}
}

func (s *Server) handleSubscribe(ctx context.Context, client *clientConn, msg Message) {
	sub := &Subscription{WorkspaceID: msg.WorkspaceID, SystemID: msg.SystemID, UserID: msg.UserID}
	client.mu.Lock()
	client.sub = sub
	client.mu.Unlock()

	if err := wsjson.Write(ctx, client.conn, Message{Type: TypeSubscribed, Subscription: sub, Timestamp: now()}); err != nil {
		s.logger.Warn("broadcast: failed to ack subscribe", "client", client.id, "error", err)
	}
}

// Publish fans out a graph_update/chat_update on behalf of a caller that is
// not itself a connected WebSocket client — the Session Orchestrator,
// applying a diff that arrived over some other transport (an LLM turn, a
// direct API edit). msg.WorkspaceID/msg.SystemID select the scope; every
// subscribed client in that scope receives it, plus every client sharing
// msg.Source.UserID. There is no origin socket to exclude.
func (s *Server) Publish(msg Message) {
	s.dispatch("", Subscription{WorkspaceID: msg.WorkspaceID, SystemID: msg.SystemID}, msg)
}

// dispatch fans out msg to every client whose subscription matches scope on
// (workspaceId, systemId), plus every client sharing the source's userId —
// the latter keeps a user's additional viewer processes in sync even
// though they are, by definition, a "different session of the same user"
// per the broadcast origin rule. originID, when non-empty, names the one
// connected socket to skip (the client that sent the update itself).
func (s *Server) dispatch(originID string, scope Subscription, msg Message) {
	start := time.Now()
	defer func() {
		observe.DefaultMetrics().BroadcastFanoutDuration.Record(context.Background(), time.Since(start).Seconds())
	}()

	if msg.Source == nil {
		msg.Source = &Source{}
	}
	msg.Timestamp = now()

	s.mu.Lock()
	targets := make([]*clientConn, 0, len(s.clients))
	for id, c := range s.clients {
		if originID != "" && id == originID {
			continue
		}
		c.mu.Lock()
		sub := c.sub
		c.mu.Unlock()

		if sub == nil {
			continue
		}
		sameScope := scope.WorkspaceID != "" && sub.WorkspaceID == scope.WorkspaceID && sub.SystemID == scope.SystemID
		sameUser := msg.Source.UserID != "" && sub.UserID == msg.Source.UserID
		if sameScope || sameUser {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	for _, c := range targets {
		s.send(c, msg)
	}
}

// Shutdown broadcasts a shutdown message to every connected client
// regardless of subscription, waits for the drain period, then closes every
// connection. It does not terminate the process; the caller's process entry
// point owns that decision.
func (s *Server) Shutdown(reason string) {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})

	msg := Message{Type: TypeShutdown, Reason: reason, Timestamp: now()}

	s.mu.Lock()
	clients := make([]*clientConn, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.send(c, msg)
	}

	time.Sleep(shutdownDrain)

	for _, c := range clients {
		c.conn.Close(websocket.StatusNormalClosure, "server shutdown")
	}
}

// send writes msg to c, logging and dropping the client on failure rather
// than letting one slow or dead socket block the fanout.
func (s *Server) send(c *clientConn, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		s.logger.Warn("broadcast: dropping client after send failure", "client", c.id, "error", err)
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		c.conn.Close(websocket.StatusInternalError, "send failure")
	}
}

// ClientCount returns the number of currently connected clients, for
// health/readiness reporting.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
