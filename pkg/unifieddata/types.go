// Package unifieddata implements the Unified Data Service: the single
// authoritative owner of one (workspaceId, systemId) pair's graph state,
// wrapping a graphstore.Store with a semantic response cache, episodic
// memory, and a pass-through graph-change stream.
package unifieddata

import "time"

// CacheRecord is a stored response keyed by the query text that produced it
// and the graph version it was computed against. A record is only ever a
// cache hit for a lookup against the same graph version.
type CacheRecord struct {
	QueryText    string
	GraphVersion int64
	Response     string
	Operations   string
	Embedding    []float32
	CreatedAt    time.Time
	TTL          time.Duration
}

func (r *CacheRecord) expired(now time.Time) bool {
	return now.After(r.CreatedAt.Add(r.TTL))
}

// Episode is one append-only record of an agent's attempt at a task,
// retained for in-context learning on subsequent similar tasks.
type Episode struct {
	AgentID   string
	Task      string
	Success   bool
	Output    string
	Critique  string
	Timestamp time.Time
}

type episodeRecord struct {
	Episode
	taskEmbedding []float32
}
