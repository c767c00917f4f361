package graphstore_test

import (
	"errors"
	"testing"

	"github.com/flowtwo/graphforge/pkg/formate"
	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/graphstore"
)

func mustParse(t *testing.T, text string) *formate.Diff {
	t.Helper()
	d, err := formate.ParseDiff(text)
	if err != nil {
		t.Fatalf("ParseDiff returned error: %v", err)
	}
	return d
}

func TestApplyDiff_ScenarioA_AddNodesAndEdge(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	diff := mustParse(t, `## Nodes
+ Order.SY.001|Order management
+ Checkout.UC.001|Handle checkout
## Edges
+ Order.SY.001 -cp-> Checkout.UC.001
`)
	if err := s.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	order, ok := s.GetNode("Order.SY.001")
	if !ok {
		t.Fatal("GetNode(Order.SY.001) not found")
	}
	if order.Description != "Order management" {
		t.Errorf("Description = %q, want %q", order.Description, "Order management")
	}
	if order.Type != graph.NodeSystem {
		t.Errorf("Type = %v, want NodeSystem", order.Type)
	}

	if _, ok := s.GetEdge("Order.SY.001", graph.EdgeCompose, "Checkout.UC.001"); !ok {
		t.Error("GetEdge(Order.SY.001, cp, Checkout.UC.001) not found")
	}
	if got := s.GetVersion(); got != 3 {
		t.Errorf("GetVersion() = %d, want 3", got)
	}
}

func TestApplyDiff_SameBatchNodeSatisfiesLaterEdge(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	diff := mustParse(t, `## Nodes
+ A.SY.001|a
+ B.SY.001|b
## Edges
+ A.SY.001 -cp-> B.SY.001
`)
	if err := s.ApplyDiff(diff); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}
	if _, ok := s.GetEdge("A.SY.001", graph.EdgeCompose, "B.SY.001"); !ok {
		t.Error("edge added in same batch as its endpoints was not found")
	}
}

func TestApplyDiff_ScenarioC_DanglingEdgeRejectedAtomically(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ Present.FN.001|present\n")); err != nil {
		t.Fatalf("seed ApplyDiff returned error: %v", err)
	}

	diff := mustParse(t, `## Nodes
+ Another.FN.001|another
## Edges
+ Present.FN.001 -io-> Missing.FN.001
`)
	err := s.ApplyDiff(diff)
	if err == nil {
		t.Fatal("ApplyDiff() = nil error, want dangling-edge error")
	}
	if want := "Node not found: Missing.FN.001"; err.Error() != want {
		t.Errorf("err.Error() = %q, want %q", err.Error(), want)
	}

	if _, ok := s.GetNode("Another.FN.001"); ok {
		t.Error("node added earlier in a failed batch persisted; ApplyDiff must be atomic")
	}
	if got := s.GetVersion(); got != 1 {
		t.Errorf("GetVersion() = %d, want 1 (unchanged by failed batch)", got)
	}
}

func TestApplyDiff_DuplicateSemanticIdRejected(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ Order.SY.001|x\n")); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	err := s.ApplyDiff(mustParse(t, "## Nodes\n+ Order.SY.001|y\n"))
	var dup *graphstore.DuplicateSemanticId
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want *DuplicateSemanticId", err)
	}
}

func TestApplyDiff_ScenarioD_UpdateNodeMergesAttributes(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ Order.SY.001|Order mgmt [phase:1, volatility:low]\n")); err != nil {
		t.Fatalf("seed ApplyDiff returned error: %v", err)
	}

	if err := s.ApplyDiff(mustParse(t, "## Nodes\n~ Order.SY.001|Order mgmt v2 [volatility:high]\n")); err != nil {
		t.Fatalf("update ApplyDiff returned error: %v", err)
	}

	node, ok := s.GetNode("Order.SY.001")
	if !ok {
		t.Fatal("GetNode(Order.SY.001) not found")
	}
	if node.Description != "Order mgmt v2" {
		t.Errorf("Description = %q, want %q", node.Description, "Order mgmt v2")
	}
	if node.Attributes["phase"] != float64(1) {
		t.Errorf("Attributes[phase] = %v, want 1 (preserved across update)", node.Attributes["phase"])
	}
	if node.Attributes["volatility"] != "high" {
		t.Errorf("Attributes[volatility] = %v, want high", node.Attributes["volatility"])
	}
}

func TestApplyDiff_UpdateUnknownNodeFails(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	err := s.ApplyDiff(mustParse(t, "## Nodes\n~ Ghost.SY.001|x\n"))
	var notFound *graphstore.NodeNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want *NodeNotFound", err)
	}
}

func TestApplyDiff_RemoveEdgeNotFoundFails(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ A.SY.001|a\n+ B.SY.001|b\n")); err != nil {
		t.Fatalf("seed ApplyDiff returned error: %v", err)
	}

	err := s.ApplyDiff(mustParse(t, "## Edges\n- A.SY.001 -cp-> B.SY.001\n"))
	var notFound *graphstore.EdgeNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want *EdgeNotFound", err)
	}
}

func TestDeleteNode_LeavesEdgesInPlace(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, `## Nodes
+ A.SY.001|a
+ B.SY.001|b
## Edges
+ A.SY.001 -cp-> B.SY.001
`)); err != nil {
		t.Fatalf("seed ApplyDiff returned error: %v", err)
	}
	if err := s.DeleteNode("A.SY.001"); err != nil {
		t.Fatalf("DeleteNode returned error: %v", err)
	}

	if _, ok := s.GetNode("A.SY.001"); ok {
		t.Error("node still present after DeleteNode")
	}
	if _, ok := s.GetEdge("A.SY.001", graph.EdgeCompose, "B.SY.001"); !ok {
		t.Error("edge removed along with node; DeleteNode must not cascade")
	}
}

func TestSubscribe_ReceivesEventsInOrder(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	var kinds []graphstore.ChangeKind
	s.Subscribe(func(ev graphstore.ChangeEvent) {
		kinds = append(kinds, ev.Kind)
	})

	if err := s.ApplyDiff(mustParse(t, `## Nodes
+ A.SY.001|a
+ B.SY.001|b
## Edges
+ A.SY.001 -cp-> B.SY.001
`)); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	want := []graphstore.ChangeKind{graphstore.ChangeAddNode, graphstore.ChangeAddNode, graphstore.ChangeAddEdge}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestSubscribe_PanicIsRecoveredAndDoesNotBlockOtherSubscribers(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	var secondCalled bool
	s.Subscribe(func(graphstore.ChangeEvent) { panic("boom") })
	s.Subscribe(func(graphstore.ChangeEvent) { secondCalled = true })

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic propagated out of ApplyDiff: %v", r)
			}
		}()
		if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ A.SY.001|a\n")); err != nil {
			t.Fatalf("ApplyDiff returned error: %v", err)
		}
	}()

	if !secondCalled {
		t.Error("second subscriber not called after first one panicked")
	}
}

func TestGetEdgesFor_Direction(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, `## Nodes
+ A.SY.001|a
+ B.SY.001|b
+ C.SY.001|c
## Edges
+ A.SY.001 -cp-> B.SY.001
+ C.SY.001 -cp-> A.SY.001
`)); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	out := s.GetEdgesFor("A.SY.001", graph.DirectionOut)
	if len(out) != 1 || out[0].TargetID != "B.SY.001" {
		t.Errorf("GetEdgesFor(out) = %+v, want one edge to B.SY.001", out)
	}

	in := s.GetEdgesFor("A.SY.001", graph.DirectionIn)
	if len(in) != 1 || in[0].SourceID != "C.SY.001" {
		t.Errorf("GetEdgesFor(in) = %+v, want one edge from C.SY.001", in)
	}

	both := s.GetEdgesFor("A.SY.001", graph.DirectionBoth)
	if len(both) != 2 {
		t.Errorf("GetEdgesFor(both) = %d edges, want 2", len(both))
	}
}

func TestToGraphState_IsIndependentCopy(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ A.SY.001|a\n")); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	snap := s.ToGraphState()
	snap.Nodes["A.SY.001"].Description = "mutated"

	node, _ := s.GetNode("A.SY.001")
	if node.Description != "a" {
		t.Errorf("live store mutated via snapshot: Description = %q, want %q", node.Description, "a")
	}
}

func TestLoadFromState_ReplacesWholesale(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ A.SY.001|a\n")); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	fresh := graph.NewState()
	fresh.Nodes["B.SY.001"] = &graph.Node{SemanticID: "B.SY.001", Type: graph.NodeSystem, Description: "b"}
	s.LoadFromState(fresh)

	if _, ok := s.GetNode("A.SY.001"); ok {
		t.Error("old node A.SY.001 still present after LoadFromState")
	}
	if _, ok := s.GetNode("B.SY.001"); !ok {
		t.Error("new node B.SY.001 missing after LoadFromState")
	}
}

func TestDirty_TracksAndClears(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ A.SY.001|a\n")); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	dirty := s.Dirty()
	if _, ok := dirty.Nodes["A.SY.001"]; !ok {
		t.Error("Dirty() missing A.SY.001 after a successful ApplyDiff")
	}

	s.ClearDirty(dirty)
	if !s.Dirty().Empty() {
		t.Error("Dirty() not empty after ClearDirty")
	}
}

func TestDirty_ClearDirtyPreservesConcurrentMutation(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ A.SY.001|a\n")); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	snapshot := s.Dirty()

	// A mutation races the persist I/O window represented by holding snapshot.
	if err := s.ApplyDiff(mustParse(t, "## Nodes\n+ B.SY.001|b\n")); err != nil {
		t.Fatalf("ApplyDiff returned error: %v", err)
	}

	s.ClearDirty(snapshot)

	dirty := s.Dirty()
	if _, ok := dirty.Nodes["A.SY.001"]; ok {
		t.Error("Dirty() still contains A.SY.001 after ClearDirty(snapshot) cleared it")
	}
	if _, ok := dirty.Nodes["B.SY.001"]; !ok {
		t.Error("Dirty() lost B.SY.001, which was marked dirty after the snapshot was taken")
	}
}

func TestDirty_NotMarkedByFailedApplyDiff(t *testing.T) {
	t.Parallel()

	s := graphstore.New()
	_ = s.ApplyDiff(mustParse(t, "## Nodes\n~ Ghost.SY.001|x\n"))

	if !s.Dirty().Empty() {
		t.Error("Dirty() non-empty after a failed ApplyDiff; aborted batches must not mark anything dirty")
	}
}
