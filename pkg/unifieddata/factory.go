package unifieddata

import (
	"sync"

	"github.com/flowtwo/graphforge/pkg/graphstore"
	"github.com/flowtwo/graphforge/pkg/provider/embeddings"
)

// Factory memoizes exactly one Service per (workspaceId, systemId) pair for
// the lifetime of the process. Callers that need the Service for a given
// pair obtain it through a single shared Factory instance passed explicitly
// down the call chain; there is no package-level singleton.
type Factory struct {
	embedder embeddings.Provider
	opts     []ServiceOption

	mu       sync.Mutex
	services map[factoryKey]*Service
}

type factoryKey struct {
	workspaceID string
	systemID    string
}

// NewFactory returns a Factory that constructs new Services with embedder
// and opts.
func NewFactory(embedder embeddings.Provider, opts ...ServiceOption) *Factory {
	return &Factory{
		embedder: embedder,
		opts:     opts,
		services: make(map[factoryKey]*Service),
	}
}

// Get returns the memoized Service for (workspaceID, systemID), constructing
// it over a fresh, empty store on first access.
func (f *Factory) Get(workspaceID, systemID string) *Service {
	key := factoryKey{workspaceID, systemID}

	f.mu.Lock()
	defer f.mu.Unlock()
	if svc, ok := f.services[key]; ok {
		return svc
	}
	svc := NewService(workspaceID, systemID, graphstore.New(), f.embedder, f.opts...)
	f.services[key] = svc
	return svc
}
