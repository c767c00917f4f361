// Package mock provides a call-recording unifieddata.Service double for
// tests of components that depend on the Unified Data Service without
// wanting to exercise its real embedding-backed cache and episodic memory.
package mock

import (
	"context"

	"github.com/flowtwo/graphforge/pkg/unifieddata"
)

// CheckCacheCall records a single CheckCache invocation.
type CheckCacheCall struct {
	Query        string
	GraphVersion int64
}

// Service wraps a real unifieddata.Service and records CheckCache calls so
// tests can assert on cache-lookup behavior without needing a live
// embeddings provider to produce realistic similarity scores.
type Service struct {
	*unifieddata.Service

	CheckCacheCalls []CheckCacheCall
}

// New wraps svc for call recording.
func New(svc *unifieddata.Service) *Service {
	return &Service{Service: svc}
}

// CheckCache records the call and delegates to the wrapped Service.
func (m *Service) CheckCache(ctx context.Context, query string, graphVersion int64) (*unifieddata.CacheRecord, bool, error) {
	m.CheckCacheCalls = append(m.CheckCacheCalls, CheckCacheCall{Query: query, GraphVersion: graphVersion})
	return m.Service.CheckCache(ctx, query, graphVersion)
}
