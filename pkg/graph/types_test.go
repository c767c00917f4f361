package graph

import "testing"

func TestNodeTypeAbbrev(t *testing.T) {
	t.Parallel()

	tests := []struct {
		nodeType NodeType
		want     string
	}{
		{NodeSystem, "SY"},
		{NodeUseCase, "UC"},
		{NodeFunction, "FN"},
	}

	for _, tt := range tests {
		if got := tt.nodeType.Abbrev(); got != tt.want {
			t.Errorf("%s.Abbrev() = %q, want %q", tt.nodeType, got, tt.want)
		}
	}
}

func TestNodeTypeFromAbbrevRoundTrip(t *testing.T) {
	t.Parallel()

	all := []NodeType{NodeSystem, NodeUseCase, NodeActor, NodeFunctionChain,
		NodeFunction, NodeFlow, NodeRequirement, NodeTest, NodeModule, NodeSchema}

	for _, nt := range all {
		got, err := NodeTypeFromAbbrev(nt.Abbrev())
		if err != nil {
			t.Fatalf("NodeTypeFromAbbrev(%q) returned error: %v", nt.Abbrev(), err)
		}
		if got != nt {
			t.Errorf("NodeTypeFromAbbrev(%q) = %v, want %v", nt.Abbrev(), got, nt)
		}
	}
}

func TestNodeTypeFromAbbrevUnknown(t *testing.T) {
	t.Parallel()

	if _, err := NodeTypeFromAbbrev("ZZ"); err == nil {
		t.Error("NodeTypeFromAbbrev(\"ZZ\") = nil error, want error")
	}
}

func TestEdgeTypeArrowRoundTrip(t *testing.T) {
	t.Parallel()

	all := []EdgeType{EdgeCompose, EdgeIO, EdgeSatisfy, EdgeVerify, EdgeAllocate, EdgeRelation}
	for _, et := range all {
		got, err := EdgeTypeFromArrow(et.Arrow())
		if err != nil {
			t.Fatalf("EdgeTypeFromArrow(%q) returned error: %v", et.Arrow(), err)
		}
		if got != et {
			t.Errorf("EdgeTypeFromArrow(%q) = %v, want %v", et.Arrow(), got, et)
		}
	}
}

func TestEdgeTypeFromArrowUnknown(t *testing.T) {
	t.Parallel()

	if _, err := EdgeTypeFromArrow("xx"); err == nil {
		t.Error("EdgeTypeFromArrow(\"xx\") = nil error, want error")
	}
}

func TestParseSemanticID(t *testing.T) {
	t.Parallel()

	name, abbrev, seq, err := ParseSemanticID("Order.SY.001")
	if err != nil {
		t.Fatalf("ParseSemanticID returned error: %v", err)
	}
	if name != "Order" || abbrev != "SY" || seq != "001" {
		t.Errorf("ParseSemanticID() = (%q, %q, %q), want (\"Order\", \"SY\", \"001\")", name, abbrev, seq)
	}
}

func TestParseSemanticIDMalformed(t *testing.T) {
	t.Parallel()

	tests := []string{"NoDotsHere", "Too.Many.Dots.Here", "..001"}
	for _, in := range tests {
		if _, _, _, err := ParseSemanticID(in); err == nil {
			t.Errorf("ParseSemanticID(%q) = nil error, want error", in)
		}
	}
}

func TestEdgeKeyLess(t *testing.T) {
	t.Parallel()

	a := EdgeKey{SourceID: "A", Type: EdgeCompose, TargetID: "B"}
	b := EdgeKey{SourceID: "A", Type: EdgeCompose, TargetID: "C"}
	c := EdgeKey{SourceID: "B", Type: EdgeCompose, TargetID: "A"}

	if !a.Less(b) {
		t.Error("a.Less(b) = false, want true")
	}
	if b.Less(a) {
		t.Error("b.Less(a) = true, want false")
	}
	if !a.Less(c) {
		t.Error("a.Less(c) = false, want true")
	}
}

func TestNodeClone(t *testing.T) {
	t.Parallel()

	n := &Node{SemanticID: "Order.SY.001", Attributes: map[string]any{"phase": 1}}
	cp := n.Clone()
	cp.Attributes["phase"] = 2

	if n.Attributes["phase"] != 1 {
		t.Errorf("original mutated: Attributes[phase] = %v, want 1", n.Attributes["phase"])
	}
	if cp.Attributes["phase"] != 2 {
		t.Errorf("clone not updated: Attributes[phase] = %v, want 2", cp.Attributes["phase"])
	}
}

func TestStateCloneIsolation(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Nodes["Order.SY.001"] = &Node{SemanticID: "Order.SY.001", Attributes: map[string]any{}}
	key := EdgeKey{SourceID: "Order.SY.001", Type: EdgeCompose, TargetID: "Checkout.UC.001"}
	s.Edges[key] = &Edge{SourceID: key.SourceID, TargetID: key.TargetID, Type: key.Type}
	s.OutAdjacency["Order.SY.001"] = []EdgeKey{key}
	s.Version = 2

	cp := s.Clone()
	cp.Nodes["Order.SY.001"].Description = "mutated"
	cp.OutAdjacency["Order.SY.001"][0] = EdgeKey{}

	if s.Nodes["Order.SY.001"].Description != "" {
		t.Errorf("original mutated via clone: Description = %q", s.Nodes["Order.SY.001"].Description)
	}
	if s.OutAdjacency["Order.SY.001"][0] != key {
		t.Errorf("original adjacency mutated via clone: got %v, want %v", s.OutAdjacency["Order.SY.001"][0], key)
	}
	if cp.Version != 2 {
		t.Errorf("clone Version = %d, want 2", cp.Version)
	}
}

func TestDirtySetSnapshotAndClear(t *testing.T) {
	t.Parallel()

	d := NewDirtySet()
	d.MarkNode("Order.SY.001")
	d.MarkEdge(EdgeKey{SourceID: "Order.SY.001", Type: EdgeCompose, TargetID: "Checkout.UC.001"})
	if d.Empty() {
		t.Fatal("d.Empty() = true after marking, want false")
	}

	snap := d.Snapshot()
	d.Clear()

	if !d.Empty() {
		t.Error("d.Empty() = false after Clear, want true")
	}
	if snap.Empty() {
		t.Error("snap.Empty() = true, want false (snapshot taken before Clear)")
	}
}
