// Package graphstore implements the Graph Store: a typed, versioned,
// in-memory node/edge store with change notification. Writes are
// serialized per instance; reads never observe a half-applied write.
package graphstore

import (
	"sync"
	"time"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// Store holds one graph's authoritative state. It is safe for concurrent
// use: writes take an exclusive lock for the duration of their validation
// and commit; reads take a shared lock only long enough to copy out what
// they need.
type Store struct {
	mu    sync.RWMutex
	state *graph.State
	dirty *graph.DirtySet

	subs subscriberList
}

// New returns an empty Store.
func New() *Store {
	return &Store{state: graph.NewState(), dirty: graph.NewDirtySet()}
}

// Dirty returns a snapshot of the nodes and edges changed since the last
// call to ClearDirty, safe to hand to a concurrent persistence call.
func (s *Store) Dirty() *graph.DirtySet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty.Snapshot()
}

// ClearDirty removes exactly the entries in snapshot (normally one
// previously returned by Dirty) from the live dirty set, after a successful
// long-term-store persist of that snapshot. Any node or edge marked dirty
// after the snapshot was taken — e.g. a mutation racing the persist I/O —
// is left dirty for the next persist rather than discarded.
func (s *Store) ClearDirty(snapshot *graph.DirtySet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty.Subtract(snapshot)
}

// Subscribe registers h to be called synchronously, in registration order,
// after every successful write. Subscribers must not mutate the store.
func (s *Store) Subscribe(h ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.subscribe(h)
}

// GetNode returns a copy of the node with the given semantic ID, or false
// if it does not exist. The returned pointer is safe to retain; it is
// never the store's own copy.
func (s *Store) GetNode(semanticID string) (*graph.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.Nodes[semanticID]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// GetAllNodes returns a copy of every node currently in the store. Order is
// unspecified.
func (s *Store) GetAllNodes() []*graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Node, 0, len(s.state.Nodes))
	for _, n := range s.state.Nodes {
		out = append(out, n.Clone())
	}
	return out
}

// GetEdge returns a copy of the edge identified by the given composite key,
// or false if it does not exist.
func (s *Store) GetEdge(sourceID string, edgeType graph.EdgeType, targetID string) (*graph.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.Edges[graph.EdgeKey{SourceID: sourceID, Type: edgeType, TargetID: targetID}]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// GetEdgesFor returns copies of every edge touching semanticID in the
// requested direction, in the order they were added.
func (s *Store) GetEdgesFor(semanticID string, direction graph.Direction) []*graph.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []graph.EdgeKey
	switch direction {
	case graph.DirectionOut:
		keys = s.state.OutAdjacency[semanticID]
	case graph.DirectionIn:
		keys = s.state.InAdjacency[semanticID]
	case graph.DirectionBoth:
		keys = append(append([]graph.EdgeKey{}, s.state.OutAdjacency[semanticID]...), s.state.InAdjacency[semanticID]...)
	}

	out := make([]*graph.Edge, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.state.Edges[k]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// GetVersion returns the store's current monotonic version.
func (s *Store) GetVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Version
}

// ToGraphState returns a deep copy of the store's full state.
func (s *Store) ToGraphState() *graph.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Clear resets the store to an empty state. It does not emit change
// events and does not touch the version counter's semantics — the new
// state starts at version 0.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = graph.NewState()
	s.dirty = graph.NewDirtySet()
}

// LoadFromState replaces the store's state wholesale, e.g. after restoring
// from the long-term store. It does not emit change events.
func (s *Store) LoadFromState(state *graph.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	s.dirty = graph.NewDirtySet()
}

// SetNode writes a single node directly, bypassing diff application. When
// upsert is false, a duplicate semantic ID is a *DuplicateSemanticId
// error. When upsert is true, an existing node is replaced and UpdatedAt
// is refreshed. Either way the version increments and a change event is
// emitted.
func (s *Store) SetNode(node *graph.Node, upsert bool) error {
	s.mu.Lock()
	now := time.Now()
	_, exists := s.state.Nodes[node.SemanticID]
	if exists && !upsert {
		s.mu.Unlock()
		return &DuplicateSemanticId{SemanticID: node.SemanticID}
	}

	n := node.Clone()
	if !exists {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	s.state.Nodes[n.SemanticID] = n
	s.dirty.MarkNode(n.SemanticID)
	s.state.Version++
	version := s.state.Version
	kind := ChangeAddNode
	if exists {
		kind = ChangeUpdateNode
	}
	s.mu.Unlock()

	s.subs.emit(ChangeEvent{Kind: kind, SemanticID: n.SemanticID, Version: version})
	return nil
}

// DeleteNode removes a node directly, bypassing diff application. It does
// not cascade: edges touching the node are left in place. Returns
// *NodeNotFound if the node does not exist.
func (s *Store) DeleteNode(semanticID string) error {
	s.mu.Lock()
	if _, ok := s.state.Nodes[semanticID]; !ok {
		s.mu.Unlock()
		return &NodeNotFound{SemanticID: semanticID}
	}
	delete(s.state.Nodes, semanticID)
	s.dirty.MarkNode(semanticID)
	s.state.Version++
	version := s.state.Version
	s.mu.Unlock()

	s.subs.emit(ChangeEvent{Kind: ChangeRemoveNode, SemanticID: semanticID, Version: version})
	return nil
}

// SetEdge writes a single edge directly, bypassing diff application and
// dangling-reference validation. When upsert is false, a duplicate
// composite key is a *DuplicateEdge error.
func (s *Store) SetEdge(edge *graph.Edge, upsert bool) error {
	s.mu.Lock()
	key := edge.Key()
	_, exists := s.state.Edges[key]
	if exists && !upsert {
		s.mu.Unlock()
		return &DuplicateEdge{SourceID: key.SourceID, Type: string(key.Type), TargetID: key.TargetID}
	}

	e := edge.Clone()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.state.Edges[key] = e
	if !exists {
		s.state.OutAdjacency[key.SourceID] = append(s.state.OutAdjacency[key.SourceID], key)
		s.state.InAdjacency[key.TargetID] = append(s.state.InAdjacency[key.TargetID], key)
	}
	s.dirty.MarkEdge(key)
	s.state.Version++
	version := s.state.Version
	s.mu.Unlock()

	s.subs.emit(ChangeEvent{Kind: ChangeAddEdge, EdgeKey: key, Version: version})
	return nil
}

// DeleteEdge removes the edge identified by key. Returns *EdgeNotFound if
// it does not exist.
func (s *Store) DeleteEdge(key graph.EdgeKey) error {
	s.mu.Lock()
	if _, ok := s.state.Edges[key]; !ok {
		s.mu.Unlock()
		return &EdgeNotFound{SourceID: key.SourceID, Type: string(key.Type), TargetID: key.TargetID}
	}
	delete(s.state.Edges, key)
	s.state.OutAdjacency[key.SourceID] = removeKey(s.state.OutAdjacency[key.SourceID], key)
	s.state.InAdjacency[key.TargetID] = removeKey(s.state.InAdjacency[key.TargetID], key)
	s.dirty.MarkEdge(key)
	s.state.Version++
	version := s.state.Version
	s.mu.Unlock()

	s.subs.emit(ChangeEvent{Kind: ChangeRemoveEdge, EdgeKey: key, Version: version})
	return nil
}

func removeKey(keys []graph.EdgeKey, target graph.EdgeKey) []graph.EdgeKey {
	for i, k := range keys {
		if k == target {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
