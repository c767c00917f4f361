package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/store"
)

// newTestStore starts a pgvector/pgvector Postgres container, migrates it,
// and returns a connected Store; the container is terminated through
// t.Cleanup. Skipped in -short runs
// since it requires a working Docker daemon.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg17",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "graphforge",
			"POSTGRES_PASSWORD": "graphforge",
			"POSTGRES_DB":       "graphforge",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	dsn := "postgres://graphforge:graphforge@" + host + ":" + port.Port() + "/graphforge?sslmode=disable"
	s := New(Config{DSN: dsn})
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestStore_LoadWorkspace_EmptyByDefault(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.LoadWorkspace(context.Background(), "ws1", "sys1")
	if err != nil {
		t.Fatalf("LoadWorkspace() error = %v", err)
	}
	if len(ws.Nodes) != 0 || len(ws.Edges) != 0 || len(ws.Messages) != 0 {
		t.Errorf("LoadWorkspace() = %+v, want empty", ws)
	}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	node := &graph.Node{
		SemanticID: "Login.UC.001",
		UUID:       "11111111-1111-1111-1111-111111111111",
		Type:       graph.NodeUseCase,
		Name:       "Login",
		Attributes: map[string]any{"phase": float64(1)},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	actor := &graph.Node{
		SemanticID: "Buyer.ACTOR.001",
		UUID:       "22222222-2222-2222-2222-222222222222",
		Type:       graph.NodeActor,
		Name:       "Buyer",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.SaveNodes(ctx, "ws1", "sys1", []*graph.Node{node, actor}); err != nil {
		t.Fatalf("SaveNodes() error = %v", err)
	}

	edge := &graph.Edge{
		UUID:      "33333333-3333-3333-3333-333333333333",
		SourceID:  "Login.UC.001",
		TargetID:  "Buyer.ACTOR.001",
		Type:      graph.EdgeRelation,
		CreatedAt: now,
	}
	if err := s.SaveEdges(ctx, "ws1", "sys1", []*graph.Edge{edge}); err != nil {
		t.Fatalf("SaveEdges() error = %v", err)
	}

	msg := &graph.Message{MessageID: "m1", ChatID: "c1", Role: graph.RoleUser, Content: "add a login use case", Timestamp: now}
	if err := s.SaveMessages(ctx, "ws1", "sys1", []*graph.Message{msg}); err != nil {
		t.Fatalf("SaveMessages() error = %v", err)
	}

	if err := s.CreateAuditLog(ctx, store.AuditLogEntry{
		WorkspaceID: "ws1", SystemID: "sys1", ChatID: "c1", UserID: "u1",
		Action: "apply-diff", Diff: "+ Login.UC.001 : UC \"Login\"", Timestamp: now,
	}); err != nil {
		t.Fatalf("CreateAuditLog() error = %v", err)
	}

	ws, err := s.LoadWorkspace(ctx, "ws1", "sys1")
	if err != nil {
		t.Fatalf("LoadWorkspace() error = %v", err)
	}
	if len(ws.Nodes) != 2 {
		t.Fatalf("Nodes = %+v, want 2", ws.Nodes)
	}
	if len(ws.Edges) != 1 || ws.Edges[0].SourceID != "Login.UC.001" {
		t.Fatalf("Edges = %+v, want the Login->Buyer relation edge", ws.Edges)
	}
	if len(ws.Messages) != 1 || ws.Messages[0].Content != "add a login use case" {
		t.Fatalf("Messages = %+v, want the saved user message", ws.Messages)
	}
}

func TestStore_SaveNodes_UpsertReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	n := &graph.Node{SemanticID: "Login.UC.001", Type: graph.NodeUseCase, Name: "Login", CreatedAt: now, UpdatedAt: now}
	if err := s.SaveNodes(ctx, "ws1", "sys1", []*graph.Node{n}); err != nil {
		t.Fatalf("SaveNodes() error = %v", err)
	}

	updated := &graph.Node{SemanticID: "Login.UC.001", Type: graph.NodeUseCase, Name: "Sign In", CreatedAt: now, UpdatedAt: now.Add(time.Second)}
	if err := s.SaveNodes(ctx, "ws1", "sys1", []*graph.Node{updated}); err != nil {
		t.Fatalf("SaveNodes() (update) error = %v", err)
	}

	ws, err := s.LoadWorkspace(ctx, "ws1", "sys1")
	if err != nil {
		t.Fatalf("LoadWorkspace() error = %v", err)
	}
	if len(ws.Nodes) != 1 || ws.Nodes[0].Name != "Sign In" {
		t.Errorf("Nodes = %+v, want a single upserted node named Sign In", ws.Nodes)
	}
}
