package graphstore

import (
	"log/slog"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// ChangeKind identifies what kind of mutation a ChangeEvent reports.
type ChangeKind string

const (
	ChangeAddNode    ChangeKind = "add_node"
	ChangeUpdateNode ChangeKind = "update_node"
	ChangeRemoveNode ChangeKind = "remove_node"
	ChangeAddEdge    ChangeKind = "add_edge"
	ChangeRemoveEdge ChangeKind = "remove_edge"
)

// ChangeEvent describes a single successful store mutation. Version is the
// store's version immediately after this mutation was applied.
type ChangeEvent struct {
	Kind       ChangeKind
	SemanticID string // set for node events
	EdgeKey    graph.EdgeKey
	Version    int64
}

// ChangeHandler observes committed store mutations. Handlers must not
// mutate the store and must not panic; a panicking handler is recovered
// and logged, never propagated to the writer.
type ChangeHandler func(ChangeEvent)

// subscriberList is a plain ordered list, not an event-emitter framework:
// subscribers are invoked synchronously, in registration order, and a
// panicking subscriber never affects the others or the writer.
type subscriberList struct {
	handlers []ChangeHandler
}

func (s *subscriberList) subscribe(h ChangeHandler) {
	s.handlers = append(s.handlers, h)
}

func (s *subscriberList) emit(ev ChangeEvent) {
	for _, h := range s.handlers {
		s.invokeSafely(h, ev)
	}
}

func (s *subscriberList) invokeSafely(h ChangeHandler, ev ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("graph: subscriber panicked", "component", "graphstore", "error", r)
		}
	}()
	h(ev)
}
