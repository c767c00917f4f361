package unifieddata

import (
	"context"
	"fmt"
	"time"
)

// CheckCache looks up a cached response for query scoped to graphVersion. It
// returns a hit only when a stored record has the same graph version and a
// cosine similarity against query's embedding of at least the configured
// threshold (default 0.85). Expired records encountered during the scan are
// removed as a side effect.
func (s *Service) CheckCache(ctx context.Context, query string, graphVersion int64) (*CacheRecord, bool, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("unifieddata: embed cache query: %w", err)
	}

	now := time.Now()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	live := s.cache[:0]
	var best *CacheRecord
	var bestScore float64

	for _, rec := range s.cache {
		if rec.expired(now) {
			continue
		}
		live = append(live, rec)

		if rec.GraphVersion != graphVersion {
			continue
		}
		score := cosineSimilarity(embedding, rec.Embedding)
		if score >= s.similarityThreshold && (best == nil || score > bestScore) {
			best, bestScore = rec, score
		}
	}
	s.cache = live

	return best, best != nil, nil
}

// CacheResponse stores response/operations under query, scoped to
// graphVersion, with the configured TTL (default one hour). The query's
// embedding is computed once here and reused by later CheckCache calls.
func (s *Service) CacheResponse(ctx context.Context, query string, graphVersion int64, response, operations string) error {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("unifieddata: embed cache entry: %w", err)
	}

	rec := &CacheRecord{
		QueryText:    query,
		GraphVersion: graphVersion,
		Response:     response,
		Operations:   operations,
		Embedding:    embedding,
		CreatedAt:    time.Now(),
		TTL:          s.cacheTTL,
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache = append(s.cache, rec)
	return nil
}
