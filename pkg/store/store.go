// Package store defines the long-term persistence contract the Session
// Orchestrator consumes. The graph itself lives in memory (see
// [github.com/flowtwo/graphforge/pkg/graphstore]); a Store only sees it on
// load (workspace restore) and on an explicit save or shutdown flush.
//
// [github.com/flowtwo/graphforge/pkg/store/postgres] is the production
// implementation; [github.com/flowtwo/graphforge/pkg/store/mock] is an
// in-memory double for tests that don't need a real database.
package store

import (
	"context"
	"time"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// Workspace is everything LoadWorkspace restores: the node and edge tables
// plus, optionally, prior chat history. Messages is nil when the caller
// only needs graph state.
type Workspace struct {
	Nodes    []*graph.Node
	Edges    []*graph.Edge
	Messages []*graph.Message
}

// AuditLogEntry is one append-only record of a graph mutation. Diff carries
// the Format E operations block text that produced the change — the only
// bit-exact artifact the core owns in the long-term store.
type AuditLogEntry struct {
	WorkspaceID string
	SystemID    string
	ChatID      string
	UserID      string
	Action      string
	Diff        string
	Timestamp   time.Time
}

// Store is the external collaborator the Session Orchestrator restores
// from and persists to. Implementations must treat SaveNodes/SaveEdges as
// upserts: a node or edge already present is replaced, not duplicated.
type Store interface {
	// Connect establishes the underlying connection (pool, client, etc.).
	// Implementations that need no connection step may no-op.
	Connect(ctx context.Context) error

	// Close releases any held resources. Safe to call on a Store that was
	// never successfully Connect-ed.
	Close(ctx context.Context) error

	// LoadWorkspace returns the persisted graph (and chat history, if any)
	// for (workspaceID, systemID). A workspace with no prior data returns
	// an empty, non-nil Workspace.
	LoadWorkspace(ctx context.Context, workspaceID, systemID string) (*Workspace, error)

	// SaveNodes upserts nodes into (workspaceID, systemID)'s table.
	SaveNodes(ctx context.Context, workspaceID, systemID string, nodes []*graph.Node) error

	// SaveEdges upserts edges into (workspaceID, systemID)'s table.
	SaveEdges(ctx context.Context, workspaceID, systemID string, edges []*graph.Edge) error

	// SaveMessages appends messages to (workspaceID, systemID)'s transcript.
	// Messages are append-only; callers must not pass an already-saved
	// MessageID twice.
	SaveMessages(ctx context.Context, workspaceID, systemID string, messages []*graph.Message) error

	// CreateAuditLog appends one audit-log entry.
	CreateAuditLog(ctx context.Context, entry AuditLogEntry) error
}
