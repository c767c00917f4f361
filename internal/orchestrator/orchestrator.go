// Package orchestrator wires the Unified Data Service, LLM Engine, Canvas
// Controller, and broadcast fabric into a running server: it owns one
// Unified Data Service per (workspaceId, systemId), restores it from the
// long-term store on first use, routes each incoming line to the right
// subsystem, applies the diffs that result, and is the only component that
// talks to the long-term store's write side.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flowtwo/graphforge/internal/broadcast"
	"github.com/flowtwo/graphforge/internal/ctxslice"
	"github.com/flowtwo/graphforge/internal/llmengine"
	"github.com/flowtwo/graphforge/internal/observe"
	"github.com/flowtwo/graphforge/internal/promptasm"
	"github.com/flowtwo/graphforge/internal/resilience"
	"github.com/flowtwo/graphforge/internal/tools"
	"github.com/flowtwo/graphforge/internal/tools/graphquery"
	"github.com/flowtwo/graphforge/pkg/provider/embeddings"
	"github.com/flowtwo/graphforge/pkg/provider/llm"
	"github.com/flowtwo/graphforge/pkg/store"
	"github.com/flowtwo/graphforge/pkg/unifieddata"
)

// Deps holds the constructed dependencies the Orchestrator wires together.
// Callers (cmd/graphforge) build the provider, the embedder, and the store,
// then hand them to New; Registry, Broadcast, Assembler, and Slicer fall
// back to sensible defaults when left nil.
type Deps struct {
	Store     store.Store
	Provider  llm.Provider
	Embedder  embeddings.Provider
	Registry  *tools.Registry
	Broadcast *broadcast.Server
	Assembler *promptasm.Assembler
	Slicer    *ctxslice.Slicer
	Logger    *slog.Logger
	Model     string
}

// engineKey identifies one (workspaceId, systemId) pair's memoized Engine,
// mirroring unifieddata.Factory's own keying.
type engineKey struct {
	workspaceID string
	systemID    string
}

// Orchestrator owns every (workspaceId, systemId) pair's Unified Data
// Service, restores it from the long-term store on first access, and is
// the sole writer back to that store. It is safe for concurrent use.
type Orchestrator struct {
	store     store.Store
	provider  llm.Provider
	registry  *tools.Registry
	broadcast *broadcast.Server
	assembler *promptasm.Assembler
	slicer    *ctxslice.Slicer
	logger    *slog.Logger
	model     string

	data *unifieddata.Factory

	mu         sync.Mutex
	engines    map[engineKey]*llmengine.Engine
	restored   map[engineKey]bool

	closers  []func() error
	stopOnce sync.Once
}

// New wires an Orchestrator from deps and connects the long-term store;
// per-(workspaceId, systemId) state is still restored lazily on first
// access, mirroring the Unified Data Service Factory's own
// construct-on-first-access behavior.
func New(ctx context.Context, deps Deps) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("orchestrator: store is required")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("orchestrator: provider is required")
	}

	o := &Orchestrator{
		store:     deps.Store,
		provider:  deps.Provider,
		registry:  deps.Registry,
		broadcast: deps.Broadcast,
		assembler: deps.Assembler,
		slicer:    deps.Slicer,
		logger:    deps.Logger,
		model:     deps.Model,
		engines:   make(map[engineKey]*llmengine.Engine),
		restored:  make(map[engineKey]bool),
	}

	if o.registry == nil {
		o.registry = tools.New()
	}
	if o.broadcast == nil {
		o.broadcast = broadcast.NewServer()
	}
	if o.assembler == nil {
		o.assembler = promptasm.NewAssembler()
	}
	if o.slicer == nil {
		o.slicer = ctxslice.NewSlicer()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	// ── 1. Long-term store connection ───────────────────────────────────
	if err := o.store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: connect store: %w", err)
	}
	o.closers = append(o.closers, func() error {
		return o.store.Close(context.Background())
	})

	// ── 2. Unified Data Service factory ─────────────────────────────────
	o.data = unifieddata.NewFactory(deps.Embedder)

	return o, nil
}

// Data returns the memoized Unified Data Service for (workspaceID,
// systemID), restoring it from the long-term store on first access.
func (o *Orchestrator) Data(ctx context.Context, workspaceID, systemID string) (*unifieddata.Service, error) {
	svc := o.data.Get(workspaceID, systemID)

	key := engineKey{workspaceID, systemID}
	o.mu.Lock()
	already := o.restored[key]
	o.mu.Unlock()
	if already {
		return svc, nil
	}

	ws, err := o.store.LoadWorkspace(ctx, workspaceID, systemID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: restore (%s, %s): %w", workspaceID, systemID, err)
	}
	state := svc.ToGraphState()
	for _, n := range ws.Nodes {
		state.Nodes[n.SemanticID] = n
	}
	for _, e := range ws.Edges {
		ek := e.Key()
		state.Edges[ek] = e
		state.OutAdjacency[e.SourceID] = append(state.OutAdjacency[e.SourceID], ek)
		state.InAdjacency[e.TargetID] = append(state.InAdjacency[e.TargetID], ek)
	}
	svc.Store().LoadFromState(state)

	o.mu.Lock()
	o.restored[key] = true
	o.mu.Unlock()

	observe.DefaultMetrics().ActivePairs.Add(ctx, 1)

	o.logger.Info("orchestrator: restored workspace",
		"workspace", workspaceID, "system", systemID,
		"nodes", len(ws.Nodes), "edges", len(ws.Edges))
	return svc, nil
}

// engine returns the memoized Engine wired to (workspaceID, systemID)'s
// Unified Data Service, constructing it on first access. Engines are
// memoized per pair rather than shared because an Engine's DataService is
// bound at construction time.
func (o *Orchestrator) engine(ctx context.Context, workspaceID, systemID string) (*llmengine.Engine, error) {
	key := engineKey{workspaceID, systemID}

	o.mu.Lock()
	eng, ok := o.engines[key]
	o.mu.Unlock()
	if ok {
		return eng, nil
	}

	svc, err := o.Data(ctx, workspaceID, systemID)
	if err != nil {
		return nil, err
	}

	eng = llmengine.New(o.provider, o.assembler, o.buildRegistry(svc), svc,
		llmengine.WithLogger(o.logger),
		llmengine.WithModel(o.model),
		llmengine.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: fmt.Sprintf("llmengine.provider.%s.%s", workspaceID, systemID),
		})),
	)

	o.mu.Lock()
	o.engines[key] = eng
	o.mu.Unlock()
	return eng, nil
}

// buildRegistry returns a Registry scoped to one (workspaceId, systemId)
// pair: every tool registered on the Orchestrator's shared base registry,
// plus a graph_query tool bound to svc. graph_query can't live on the
// shared base registry directly because its handler closes over a single
// Backend at registration time, and each pair has its own graph.
func (o *Orchestrator) buildRegistry(svc *unifieddata.Service) *tools.Registry {
	reg := tools.New()
	for _, t := range o.registry.All() {
		reg.Register(t)
	}
	reg.Register(graphquery.NewTool(svc))
	return reg
}

// Broadcast returns the broadcast server every viewer connection is
// expected to speak to.
func (o *Orchestrator) Broadcast() *broadcast.Server { return o.broadcast }

// Shutdown sends shutdown on the broadcast bus, flushes pending persistence
// for every touched (workspaceId, systemId) pair, then closes every
// resource in registration order. Safe to call more than once.
func (o *Orchestrator) Shutdown(ctx context.Context, reason string) error {
	var shutdownErr error
	o.stopOnce.Do(func() {
		o.broadcast.Shutdown(reason)

		o.mu.Lock()
		keys := make([]engineKey, 0, len(o.restored))
		for k := range o.restored {
			keys = append(keys, k)
		}
		o.mu.Unlock()

		for _, k := range keys {
			if err := o.Persist(ctx, k.workspaceID, k.systemID); err != nil {
				o.logger.Warn("orchestrator: shutdown persist failed", "workspace", k.workspaceID, "system", k.systemID, "error", err)
			}
			observe.DefaultMetrics().ActivePairs.Add(ctx, -1)
		}

		for i, closer := range o.closers {
			if err := closer(); err != nil {
				o.logger.Warn("orchestrator: closer error", "index", i, "error", err)
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}
