package graph

// State is a point-in-time snapshot of the graph: a mapping from semantic ID
// to Node, an index from composite edge key to Edge, and forward/reverse
// adjacency keyed by semantic ID. Version increments on every successful
// mutation; LastSavedVersion tracks the last version handed to the
// long-term store.
//
// A zero-value State is ready to use.
type State struct {
	Nodes            map[string]*Node
	Edges            map[EdgeKey]*Edge
	OutAdjacency     map[string][]EdgeKey
	InAdjacency      map[string][]EdgeKey
	Version          int64
	LastSavedVersion int64
}

// NewState returns an empty, initialized State.
func NewState() *State {
	return &State{
		Nodes:        make(map[string]*Node),
		Edges:        make(map[EdgeKey]*Edge),
		OutAdjacency: make(map[string][]EdgeKey),
		InAdjacency:  make(map[string][]EdgeKey),
	}
}

// Clone returns a deep copy of s, suitable as the authoritative snapshot
// handed out by GraphStore.ToGraphState.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Nodes:            make(map[string]*Node, len(s.Nodes)),
		Edges:            make(map[EdgeKey]*Edge, len(s.Edges)),
		OutAdjacency:     make(map[string][]EdgeKey, len(s.OutAdjacency)),
		InAdjacency:      make(map[string][]EdgeKey, len(s.InAdjacency)),
		Version:          s.Version,
		LastSavedVersion: s.LastSavedVersion,
	}
	for id, n := range s.Nodes {
		out.Nodes[id] = n.Clone()
	}
	for k, e := range s.Edges {
		out.Edges[k] = e.Clone()
	}
	for id, keys := range s.OutAdjacency {
		cp := make([]EdgeKey, len(keys))
		copy(cp, keys)
		out.OutAdjacency[id] = cp
	}
	for id, keys := range s.InAdjacency {
		cp := make([]EdgeKey, len(keys))
		copy(cp, keys)
		out.InAdjacency[id] = cp
	}
	return out
}

// DirtySet tracks semantic IDs and edge keys changed since the last
// successful persistence. It survives failed persistence attempts; only a
// successful persist clears it.
type DirtySet struct {
	Nodes map[string]struct{}
	Edges map[EdgeKey]struct{}
}

// NewDirtySet returns an empty DirtySet.
func NewDirtySet() *DirtySet {
	return &DirtySet{
		Nodes: make(map[string]struct{}),
		Edges: make(map[EdgeKey]struct{}),
	}
}

// MarkNode records semanticId as dirty.
func (d *DirtySet) MarkNode(semanticID string) {
	d.Nodes[semanticID] = struct{}{}
}

// MarkEdge records key as dirty.
func (d *DirtySet) MarkEdge(key EdgeKey) {
	d.Edges[key] = struct{}{}
}

// Empty reports whether nothing is dirty.
func (d *DirtySet) Empty() bool {
	return len(d.Nodes) == 0 && len(d.Edges) == 0
}

// Snapshot returns a copy of d safe to hand to a concurrent persistence
// call without racing further mutations to the live set.
func (d *DirtySet) Snapshot() *DirtySet {
	cp := NewDirtySet()
	for k := range d.Nodes {
		cp.Nodes[k] = struct{}{}
	}
	for k := range d.Edges {
		cp.Edges[k] = struct{}{}
	}
	return cp
}

// Clear empties d in place.
func (d *DirtySet) Clear() {
	d.Nodes = make(map[string]struct{})
	d.Edges = make(map[EdgeKey]struct{})
}

// Subtract removes from d exactly the entries present in other, leaving any
// entry marked dirty after other was snapshotted untouched. Used after a
// persist so a mutation racing the I/O window is not silently dropped.
func (d *DirtySet) Subtract(other *DirtySet) {
	for k := range other.Nodes {
		delete(d.Nodes, k)
	}
	for k := range other.Edges {
		delete(d.Edges, k)
	}
}
