package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/flowtwo/graphforge/internal/broadcast"
	"github.com/flowtwo/graphforge/pkg/graph"
	embeddingsmock "github.com/flowtwo/graphforge/pkg/provider/embeddings/mock"
	llmmock "github.com/flowtwo/graphforge/pkg/provider/llm/mock"
	"github.com/flowtwo/graphforge/pkg/store"
	storemock "github.com/flowtwo/graphforge/pkg/store/mock"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *storemock.Store, *llmmock.Provider) {
	t.Helper()
	st := storemock.New()
	provider := &llmmock.Provider{}
	o, err := New(context.Background(), Deps{
		Store:    st,
		Provider: provider,
		Embedder: &embeddingsmock.Provider{DimensionsValue: 3},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o, st, provider
}

func seededWorkspace() store.Workspace {
	now := time.Now().UTC()
	return store.Workspace{
		Nodes: []*graph.Node{
			{SemanticID: "Login.UC.001", Type: graph.NodeUseCase, Name: "Login", CreatedAt: now, UpdatedAt: now},
		},
	}
}

func TestNew_RequiresStoreAndProvider(t *testing.T) {
	if _, err := New(context.Background(), Deps{Provider: &llmmock.Provider{}}); err == nil {
		t.Error("New() with no store should error")
	}
	if _, err := New(context.Background(), Deps{Store: storemock.New()}); err == nil {
		t.Error("New() with no provider should error")
	}
}

func TestData_RestoresFromLongTermStoreOnFirstAccess(t *testing.T) {
	o, st, _ := newTestOrchestrator(t)
	ctx := context.Background()

	st.Seed("ws1", "sys1", seededWorkspace())

	svc, err := o.Data(ctx, "ws1", "sys1")
	if err != nil {
		t.Fatalf("Data() error = %v", err)
	}
	if _, ok := svc.GetNode("Login.UC.001"); !ok {
		t.Error("restored Service is missing the seeded node")
	}

	again, err := o.Data(ctx, "ws1", "sys1")
	if err != nil {
		t.Fatalf("Data() second call error = %v", err)
	}
	if svc != again {
		t.Error("Data() should memoize the Service per (workspaceID, systemID)")
	}
}

func TestData_IsolatesDifferentPairs(t *testing.T) {
	o, st, _ := newTestOrchestrator(t)
	ctx := context.Background()
	st.Seed("ws1", "sys1", seededWorkspace())

	a, err := o.Data(ctx, "ws1", "sys1")
	if err != nil {
		t.Fatalf("Data(ws1,sys1) error = %v", err)
	}
	b, err := o.Data(ctx, "ws2", "sys1")
	if err != nil {
		t.Fatalf("Data(ws2,sys1) error = %v", err)
	}
	if a == b {
		t.Fatal("different (workspaceID, systemID) pairs must not share a Service")
	}
	if _, ok := b.GetNode("Login.UC.001"); ok {
		t.Error("ws2/sys1 should not see ws1/sys1's seeded node")
	}
}

func TestShutdown_PersistsDirtyPairsAndClosesStore(t *testing.T) {
	o, st, _ := newTestOrchestrator(t)
	ctx := context.Background()

	if err := o.applyOperationsForTest(ctx, "ws1", "sys1", "## Nodes\n+ Login.UC.001|Login"); err != nil {
		t.Fatalf("seed diff: %v", err)
	}

	if err := o.Shutdown(ctx, "maintenance"); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	ws, err := st.LoadWorkspace(ctx, "ws1", "sys1")
	if err != nil {
		t.Fatalf("LoadWorkspace() error = %v", err)
	}
	if len(ws.Nodes) != 1 {
		t.Fatalf("Nodes = %+v, want the diff's node persisted on shutdown", ws.Nodes)
	}
	if !st.IsClosed() {
		t.Error("Shutdown() should close the long-term store")
	}
}

func TestShutdown_IsIdempotent(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()
	if err := o.Shutdown(ctx, "first"); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := o.Shutdown(ctx, "second"); err != nil {
		t.Fatalf("second Shutdown() should be a no-op, got error = %v", err)
	}
}

func TestEngine_RegistersGraphQueryToolScopedToPair(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	if err := o.applyOperationsForTest(ctx, "ws1", "sys1", "## Nodes\n+ Login.UC.001|Login"); err != nil {
		t.Fatalf("seed diff: %v", err)
	}

	eng, err := o.engine(ctx, "ws1", "sys1")
	if err != nil {
		t.Fatalf("engine() error = %v", err)
	}

	reg := o.buildRegistry(o.data.Get("ws1", "sys1"))
	out, err := reg.Execute(ctx, "graph_query", `{"queryType":"nodes"}`)
	if err != nil {
		t.Fatalf("graph_query execute error = %v", err)
	}
	if out == "" {
		t.Error("graph_query returned an empty result for a seeded graph")
	}
	_ = eng
}

// applyOperationsForTest exposes the private applyOperations path to this
// package's tests without broadening Orchestrator's public surface.
func (o *Orchestrator) applyOperationsForTest(ctx context.Context, workspaceID, systemID, diffText string) error {
	return o.applyOperations(ctx, workspaceID, systemID, "chat1", "user1", diffText, broadcast.OriginUserEdit)
}
