// Package mock provides a call-recording graphstore.Store double for
// tests that need to assert which writes happened without exercising the
// real store's locking and event-emission machinery.
package mock

import (
	"github.com/flowtwo/graphforge/pkg/formate"
	"github.com/flowtwo/graphforge/pkg/graphstore"
)

// Store wraps a real graphstore.Store and records every ApplyDiff call it
// receives, so tests can assert on call count and arguments without
// re-deriving them from the resulting state.
type Store struct {
	*graphstore.Store

	ApplyDiffCalls []*formate.Diff
	ApplyDiffErr   error
}

// New returns a Store backed by a fresh, empty graphstore.Store.
func New() *Store {
	return &Store{Store: graphstore.New()}
}

// ApplyDiff records diff and, unless ApplyDiffErr is set, delegates to the
// wrapped real store.
func (m *Store) ApplyDiff(diff *formate.Diff) error {
	m.ApplyDiffCalls = append(m.ApplyDiffCalls, diff)
	if m.ApplyDiffErr != nil {
		return m.ApplyDiffErr
	}
	return m.Store.ApplyDiff(diff)
}

// LastDiff returns the most recent diff passed to ApplyDiff, or nil if it
// has never been called.
func (m *Store) LastDiff() *formate.Diff {
	if len(m.ApplyDiffCalls) == 0 {
		return nil
	}
	return m.ApplyDiffCalls[len(m.ApplyDiffCalls)-1]
}

// SubscribeRecorder returns a graphstore.ChangeHandler that appends every
// received event to the given slice pointer, for asserting event ordering
// in tests.
func SubscribeRecorder(events *[]graphstore.ChangeEvent) graphstore.ChangeHandler {
	return func(ev graphstore.ChangeEvent) {
		*events = append(*events, ev)
	}
}
