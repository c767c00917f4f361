package unifieddata_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/graphstore"
	"github.com/flowtwo/graphforge/pkg/unifieddata"
)

// wordVectorEmbedder is a deterministic fake embeddings.Provider used only
// in these tests: it maps text to a bag-of-words vector over a small fixed
// vocabulary, so that cosine similarity behaves meaningfully for asserting
// the response cache's scoping logic without depending on a live model.
type wordVectorEmbedder struct {
	vocab []string
}

func newWordVectorEmbedder() *wordVectorEmbedder {
	return &wordVectorEmbedder{vocab: []string{
		"order", "management", "checkout", "payment", "invoice", "schema", "requirement",
	}}
}

func (e *wordVectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.vocab))
	for i, word := range e.vocab {
		if strings.Contains(lower, word) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func (e *wordVectorEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *wordVectorEmbedder) Dimensions() int { return len(e.vocab) }
func (e *wordVectorEmbedder) ModelID() string { return "fake-bow-v1" }

func TestCheckCache_HitOnSameVersionAndHighSimilarity(t *testing.T) {
	t.Parallel()

	svc := unifieddata.NewService("ws1", "sys1", graphstore.New(), newWordVectorEmbedder())
	ctx := context.Background()

	if err := svc.CacheResponse(ctx, "describe the order management system", 5, "resp", "ops"); err != nil {
		t.Fatalf("CacheResponse returned error: %v", err)
	}

	rec, hit, err := svc.CheckCache(ctx, "describe the order management system", 5)
	if err != nil {
		t.Fatalf("CheckCache returned error: %v", err)
	}
	if !hit {
		t.Fatal("CheckCache hit = false, want true for identical query/version")
	}
	if rec.Response != "resp" {
		t.Errorf("rec.Response = %q, want resp", rec.Response)
	}
}

func TestCheckCache_MissOnDifferentVersion(t *testing.T) {
	t.Parallel()

	svc := unifieddata.NewService("ws1", "sys1", graphstore.New(), newWordVectorEmbedder())
	ctx := context.Background()

	if err := svc.CacheResponse(ctx, "describe the order management system", 5, "resp", "ops"); err != nil {
		t.Fatalf("CacheResponse returned error: %v", err)
	}

	_, hit, err := svc.CheckCache(ctx, "describe the order management system", 6)
	if err != nil {
		t.Fatalf("CheckCache returned error: %v", err)
	}
	if hit {
		t.Error("CheckCache hit = true for a different graph version, want false")
	}
}

func TestCheckCache_MissOnLowSimilarity(t *testing.T) {
	t.Parallel()

	svc := unifieddata.NewService("ws1", "sys1", graphstore.New(), newWordVectorEmbedder())
	ctx := context.Background()

	if err := svc.CacheResponse(ctx, "describe the order management system", 5, "resp", "ops"); err != nil {
		t.Fatalf("CacheResponse returned error: %v", err)
	}

	_, hit, err := svc.CheckCache(ctx, "generate a schema requirement", 5)
	if err != nil {
		t.Fatalf("CheckCache returned error: %v", err)
	}
	if hit {
		t.Error("CheckCache hit = true for an unrelated query, want false")
	}
}

func TestCheckCache_ExpiredRecordIsRemoved(t *testing.T) {
	t.Parallel()

	svc := unifieddata.NewService("ws1", "sys1", graphstore.New(), newWordVectorEmbedder(),
		unifieddata.WithCacheTTL(0))
	ctx := context.Background()

	if err := svc.CacheResponse(ctx, "order management", 1, "resp", "ops"); err != nil {
		t.Fatalf("CacheResponse returned error: %v", err)
	}
	time.Sleep(time.Millisecond)

	_, hit, err := svc.CheckCache(ctx, "order management", 1)
	if err != nil {
		t.Fatalf("CheckCache returned error: %v", err)
	}
	if hit {
		t.Error("CheckCache hit = true for an expired record, want false")
	}
}

func TestEpisodes_LoadContextRecencyWithoutTask(t *testing.T) {
	t.Parallel()

	svc := unifieddata.NewService("ws1", "sys1", graphstore.New(), newWordVectorEmbedder())
	ctx := context.Background()

	for i, task := range []string{"order management", "checkout flow", "payment schema"} {
		if err := svc.StoreEpisode(ctx, "agentA", task, i%2 == 0, "out", "crit"); err != nil {
			t.Fatalf("StoreEpisode returned error: %v", err)
		}
	}

	episodes, err := svc.LoadContext(ctx, "agentA", "", 2)
	if err != nil {
		t.Fatalf("LoadContext returned error: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("len(episodes) = %d, want 2", len(episodes))
	}
	if episodes[0].Task != "checkout flow" || episodes[1].Task != "payment schema" {
		t.Errorf("episodes = %+v, want the 2 most recent in chronological order", episodes)
	}
}

func TestEpisodes_LoadContextFiltersByAgent(t *testing.T) {
	t.Parallel()

	svc := unifieddata.NewService("ws1", "sys1", graphstore.New(), newWordVectorEmbedder())
	ctx := context.Background()

	if err := svc.StoreEpisode(ctx, "agentA", "order management", true, "out", ""); err != nil {
		t.Fatalf("StoreEpisode returned error: %v", err)
	}
	if err := svc.StoreEpisode(ctx, "agentB", "checkout flow", true, "out", ""); err != nil {
		t.Fatalf("StoreEpisode returned error: %v", err)
	}

	episodes, err := svc.LoadContext(ctx, "agentA", "", 10)
	if err != nil {
		t.Fatalf("LoadContext returned error: %v", err)
	}
	if len(episodes) != 1 || episodes[0].AgentID != "agentA" {
		t.Errorf("episodes = %+v, want only agentA's episode", episodes)
	}
}

func TestEpisodes_LoadContextRanksBySimilarityWhenTaskGiven(t *testing.T) {
	t.Parallel()

	svc := unifieddata.NewService("ws1", "sys1", graphstore.New(), newWordVectorEmbedder())
	ctx := context.Background()

	if err := svc.StoreEpisode(ctx, "agentA", "order management", true, "out", ""); err != nil {
		t.Fatalf("StoreEpisode returned error: %v", err)
	}
	if err := svc.StoreEpisode(ctx, "agentA", "invoice payment", true, "out", ""); err != nil {
		t.Fatalf("StoreEpisode returned error: %v", err)
	}

	episodes, err := svc.LoadContext(ctx, "agentA", "order management review", 1)
	if err != nil {
		t.Fatalf("LoadContext returned error: %v", err)
	}
	if len(episodes) != 1 || episodes[0].Task != "order management" {
		t.Errorf("episodes = %+v, want the order-management episode ranked first", episodes)
	}
}

func TestFactory_MemoizesPerWorkspaceAndSystem(t *testing.T) {
	t.Parallel()

	factory := unifieddata.NewFactory(newWordVectorEmbedder())

	a1 := factory.Get("ws1", "sysA")
	a2 := factory.Get("ws1", "sysA")
	b := factory.Get("ws1", "sysB")

	if a1 != a2 {
		t.Error("Factory.Get returned distinct instances for the same (workspace, system) pair")
	}
	if a1 == b {
		t.Error("Factory.Get returned the same instance for different system IDs")
	}
}

func TestOnGraphChange_ProxiesStoreEvents(t *testing.T) {
	t.Parallel()

	store := graphstore.New()
	svc := unifieddata.NewService("ws1", "sys1", store, newWordVectorEmbedder())

	var received graphstore.ChangeEvent
	svc.OnGraphChange(func(ev graphstore.ChangeEvent) { received = ev })

	if err := store.SetNode(&graph.Node{SemanticID: "Order.SY.001", Type: graph.NodeSystem, Name: "Order"}, false); err != nil {
		t.Fatalf("SetNode returned error: %v", err)
	}
	if received.Kind != graphstore.ChangeAddNode || received.SemanticID != "Order.SY.001" {
		t.Errorf("received = %+v, want an add-node event for Order.SY.001", received)
	}
}
