// Package mock provides an in-memory store.Store double for tests of
// components (the Session Orchestrator, in particular) that need a
// long-term store without standing up PostgreSQL.
package mock

import (
	"context"
	"sync"

	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/store"
)

type workspaceKey struct {
	workspaceID string
	systemID    string
}

// Store is a mutex-protected in-memory implementation of store.Store.
// Construct it with New; the zero value has no workspace map and is not
// ready to use.
type Store struct {
	mu sync.Mutex

	connected bool
	closed    bool

	workspaces map[workspaceKey]*store.Workspace
	auditLog   []store.AuditLogEntry

	// ConnectErr, if non-nil, is returned by Connect instead of succeeding.
	ConnectErr error

	// OnSaveNodes, if non-nil, is invoked once at the start of every
	// SaveNodes call, before the lock is taken — tests use it to inject a
	// mutation into the caller's in-memory store mid-persist.
	OnSaveNodes func()
}

// New returns an empty Store.
func New() *Store {
	return &Store{workspaces: make(map[workspaceKey]*store.Workspace)}
}

// Connect records that Connect was called and returns ConnectErr.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConnectErr != nil {
		return s.ConnectErr
	}
	s.connected = true
	return nil
}

// Close marks the store closed. Safe to call without a prior Connect.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// LoadWorkspace returns a copy of the workspace previously seeded via
// Seed or saved via SaveNodes/SaveEdges/SaveMessages. A workspace with no
// prior data returns an empty, non-nil Workspace.
func (s *Store) LoadWorkspace(ctx context.Context, workspaceID, systemID string) (*store.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspaceLocked(workspaceID, systemID)
	return &store.Workspace{
		Nodes:    append([]*graph.Node(nil), ws.Nodes...),
		Edges:    append([]*graph.Edge(nil), ws.Edges...),
		Messages: append([]*graph.Message(nil), ws.Messages...),
	}, nil
}

// SaveNodes upserts nodes by SemanticID.
func (s *Store) SaveNodes(ctx context.Context, workspaceID, systemID string, nodes []*graph.Node) error {
	if s.OnSaveNodes != nil {
		s.OnSaveNodes()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspaceLocked(workspaceID, systemID)
	for _, n := range nodes {
		replaced := false
		for i, existing := range ws.Nodes {
			if existing.SemanticID == n.SemanticID {
				ws.Nodes[i] = n
				replaced = true
				break
			}
		}
		if !replaced {
			ws.Nodes = append(ws.Nodes, n)
		}
	}
	return nil
}

// SaveEdges upserts edges by (SourceID, Type, TargetID).
func (s *Store) SaveEdges(ctx context.Context, workspaceID, systemID string, edges []*graph.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspaceLocked(workspaceID, systemID)
	for _, e := range edges {
		replaced := false
		for i, existing := range ws.Edges {
			if existing.Key() == e.Key() {
				ws.Edges[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			ws.Edges = append(ws.Edges, e)
		}
	}
	return nil
}

// SaveMessages appends messages to the workspace's transcript.
func (s *Store) SaveMessages(ctx context.Context, workspaceID, systemID string, messages []*graph.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspaceLocked(workspaceID, systemID)
	ws.Messages = append(ws.Messages, messages...)
	return nil
}

// CreateAuditLog appends entry to the in-memory audit log.
func (s *Store) CreateAuditLog(ctx context.Context, entry store.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog = append(s.auditLog, entry)
	return nil
}

// AuditLog returns a copy of every recorded audit-log entry, in call order.
func (s *Store) AuditLog() []store.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.AuditLogEntry(nil), s.auditLog...)
}

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Seed pre-populates a workspace, e.g. to simulate a restart with prior
// persisted state.
func (s *Store) Seed(workspaceID, systemID string, ws store.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces[workspaceKey{workspaceID, systemID}] = &ws
}

// workspaceLocked returns the workspace for (workspaceID, systemID),
// creating an empty one on first access. Callers must hold s.mu.
func (s *Store) workspaceLocked(workspaceID, systemID string) *store.Workspace {
	key := workspaceKey{workspaceID, systemID}
	ws, ok := s.workspaces[key]
	if !ok {
		ws = &store.Workspace{}
		s.workspaces[key] = ws
	}
	return ws
}

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)
