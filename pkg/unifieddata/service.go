package unifieddata

import (
	"sync"
	"time"

	"github.com/flowtwo/graphforge/pkg/formate"
	"github.com/flowtwo/graphforge/pkg/graph"
	"github.com/flowtwo/graphforge/pkg/graphstore"
	"github.com/flowtwo/graphforge/pkg/provider/embeddings"
)

const (
	defaultCacheTTL            = time.Hour
	defaultSimilarityThreshold = 0.85
)

// ServiceOption is a functional option for configuring a [Service].
type ServiceOption func(*Service)

// WithCacheTTL overrides the default one-hour response-cache TTL.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.cacheTTL = ttl }
}

// WithSimilarityThreshold overrides the default 0.85 cosine-similarity cache
// hit threshold.
func WithSimilarityThreshold(threshold float64) ServiceOption {
	return func(s *Service) { s.similarityThreshold = threshold }
}

// Service is the Unified Data Service: the sole authoritative owner of one
// (workspaceId, systemId) pair's graph state. It wraps a [graphstore.Store]
// and adds a semantic response cache, episodic memory, and a pass-through
// graph-change stream. Every other component receives a Service reference
// explicitly; there is no global lookup.
//
// Service is safe for concurrent use.
type Service struct {
	WorkspaceID string
	SystemID    string

	store    *graphstore.Store
	embedder embeddings.Provider

	cacheTTL            time.Duration
	similarityThreshold float64

	cacheMu sync.Mutex
	cache   []*CacheRecord

	episodeMu sync.Mutex
	episodes  []episodeRecord
}

// NewService constructs a Service over store, using embedder to compute
// embeddings for response-cache and episodic-memory similarity scoring.
func NewService(workspaceID, systemID string, store *graphstore.Store, embedder embeddings.Provider, opts ...ServiceOption) *Service {
	s := &Service{
		WorkspaceID:         workspaceID,
		SystemID:            systemID,
		store:               store,
		embedder:            embedder,
		cacheTTL:            defaultCacheTTL,
		similarityThreshold: defaultSimilarityThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying graph store. The Graph Store is an
// implementation detail of the Service; callers outside this package should
// prefer the Service's own read/write/diff methods where one exists.
func (s *Service) Store() *graphstore.Store {
	return s.store
}

// GetNode delegates to the underlying store.
func (s *Service) GetNode(semanticID string) (*graph.Node, bool) {
	return s.store.GetNode(semanticID)
}

// GetAllNodes delegates to the underlying store.
func (s *Service) GetAllNodes() []*graph.Node {
	return s.store.GetAllNodes()
}

// GetEdge delegates to the underlying store.
func (s *Service) GetEdge(sourceID string, edgeType graph.EdgeType, targetID string) (*graph.Edge, bool) {
	return s.store.GetEdge(sourceID, edgeType, targetID)
}

// GetEdgesFor delegates to the underlying store.
func (s *Service) GetEdgesFor(semanticID string, direction graph.Direction) []*graph.Edge {
	return s.store.GetEdgesFor(semanticID, direction)
}

// GetVersion delegates to the underlying store.
func (s *Service) GetVersion() int64 {
	return s.store.GetVersion()
}

// ToGraphState delegates to the underlying store.
func (s *Service) ToGraphState() *graph.State {
	return s.store.ToGraphState()
}

// OnGraphChange proxies handler registration to the underlying store's
// change-event stream.
func (s *Service) OnGraphChange(handler graphstore.ChangeHandler) {
	s.store.Subscribe(handler)
}

// ApplyDiff delegates to the underlying store's atomic diff application.
func (s *Service) ApplyDiff(diff *formate.Diff) error {
	return s.store.ApplyDiff(diff)
}
