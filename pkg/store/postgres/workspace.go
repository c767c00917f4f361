package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/store"
)

// LoadWorkspace implements [store.Store]. It returns an empty, non-nil
// Workspace for a (workspaceID, systemID) pair with no prior data.
func (s *Store) LoadWorkspace(ctx context.Context, workspaceID, systemID string) (*store.Workspace, error) {
	nodes, err := s.loadNodes(ctx, workspaceID, systemID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: load workspace: %w", err)
	}
	edges, err := s.loadEdges(ctx, workspaceID, systemID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: load workspace: %w", err)
	}
	messages, err := s.loadMessages(ctx, workspaceID, systemID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: load workspace: %w", err)
	}
	return &store.Workspace{Nodes: nodes, Edges: edges, Messages: messages}, nil
}

func (s *Store) loadNodes(ctx context.Context, workspaceID, systemID string) ([]*graph.Node, error) {
	const q = `
		SELECT semantic_id, uuid, type, name, description, attributes, created_at, updated_at
		FROM   nodes
		WHERE  workspace_id = $1 AND system_id = $2
		ORDER  BY semantic_id`

	rows, err := s.pool.Query(ctx, q, workspaceID, systemID)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	nodes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*graph.Node, error) {
		var (
			n         graph.Node
			attrsJSON []byte
		)
		if err := row.Scan(&n.SemanticID, &n.UUID, &n.Type, &n.Name, &n.Description, &attrsJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &n.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshal node attributes: %w", err)
			}
		}
		return &n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load nodes: scan: %w", err)
	}
	if nodes == nil {
		nodes = []*graph.Node{}
	}
	return nodes, nil
}

func (s *Store) loadEdges(ctx context.Context, workspaceID, systemID string) ([]*graph.Edge, error) {
	const q = `
		SELECT uuid, source_id, target_id, type, created_at
		FROM   edges
		WHERE  workspace_id = $1 AND system_id = $2
		ORDER  BY source_id, type, target_id`

	rows, err := s.pool.Query(ctx, q, workspaceID, systemID)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	edges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*graph.Edge, error) {
		var e graph.Edge
		if err := row.Scan(&e.UUID, &e.SourceID, &e.TargetID, &e.Type, &e.CreatedAt); err != nil {
			return nil, err
		}
		return &e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load edges: scan: %w", err)
	}
	if edges == nil {
		edges = []*graph.Edge{}
	}
	return edges, nil
}

func (s *Store) loadMessages(ctx context.Context, workspaceID, systemID string) ([]*graph.Message, error) {
	const q = `
		SELECT message_id, chat_id, role, content, operations, created_at
		FROM   messages
		WHERE  workspace_id = $1 AND system_id = $2
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, workspaceID, systemID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*graph.Message, error) {
		var m graph.Message
		if err := row.Scan(&m.MessageID, &m.ChatID, &m.Role, &m.Content, &m.Operations, &m.Timestamp); err != nil {
			return nil, err
		}
		return &m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load messages: scan: %w", err)
	}
	if messages == nil {
		messages = []*graph.Message{}
	}
	return messages, nil
}

// SaveNodes implements [store.Store]. Each node is upserted by
// (workspaceID, systemID, semanticID).
func (s *Store) SaveNodes(ctx context.Context, workspaceID, systemID string, nodes []*graph.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	const q = `
		INSERT INTO nodes (workspace_id, system_id, semantic_id, uuid, type, name, description, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (workspace_id, system_id, semantic_id) DO UPDATE SET
		    uuid        = EXCLUDED.uuid,
		    type        = EXCLUDED.type,
		    name        = EXCLUDED.name,
		    description = EXCLUDED.description,
		    attributes  = EXCLUDED.attributes,
		    updated_at  = EXCLUDED.updated_at`

	batch := &pgx.Batch{}
	for _, n := range nodes {
		attrsJSON, err := json.Marshal(n.Attributes)
		if err != nil {
			return fmt.Errorf("store/postgres: save nodes: marshal attributes for %q: %w", n.SemanticID, err)
		}
		batch.Queue(q, workspaceID, systemID, n.SemanticID, n.UUID, n.Type, n.Name, n.Description, attrsJSON, n.CreatedAt, n.UpdatedAt)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store/postgres: save nodes: %w", err)
	}
	return nil
}

// SaveEdges implements [store.Store]. Each edge is upserted by
// (workspaceID, systemID, sourceID, type, targetID).
func (s *Store) SaveEdges(ctx context.Context, workspaceID, systemID string, edges []*graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	const q = `
		INSERT INTO edges (workspace_id, system_id, uuid, source_id, target_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workspace_id, system_id, source_id, type, target_id) DO UPDATE SET
		    uuid = EXCLUDED.uuid`

	batch := &pgx.Batch{}
	for _, e := range edges {
		batch.Queue(q, workspaceID, systemID, e.UUID, e.SourceID, e.TargetID, e.Type, e.CreatedAt)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store/postgres: save edges: %w", err)
	}
	return nil
}

// SaveMessages implements [store.Store]. Messages are append-only; callers
// must not pass an already-saved MessageID twice.
func (s *Store) SaveMessages(ctx context.Context, workspaceID, systemID string, messages []*graph.Message) error {
	if len(messages) == 0 {
		return nil
	}
	const q = `
		INSERT INTO messages (workspace_id, system_id, message_id, chat_id, role, content, operations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	batch := &pgx.Batch{}
	for _, m := range messages {
		batch.Queue(q, workspaceID, systemID, m.MessageID, m.ChatID, m.Role, m.Content, m.Operations, m.Timestamp)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store/postgres: save messages: %w", err)
	}
	return nil
}

// CreateAuditLog implements [store.Store].
func (s *Store) CreateAuditLog(ctx context.Context, entry store.AuditLogEntry) error {
	const q = `
		INSERT INTO audit_log (workspace_id, system_id, chat_id, user_id, action, diff, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		entry.WorkspaceID, entry.SystemID, entry.ChatID, entry.UserID, entry.Action, entry.Diff, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("store/postgres: create audit log: %w", err)
	}
	return nil
}

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)
