package unifieddata

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// StoreEpisode appends an episode of agentId's attempt at task to the
// episodic log. Episodes are never mutated or removed once stored.
func (s *Service) StoreEpisode(ctx context.Context, agentID, task string, success bool, output, critique string) error {
	embedding, err := s.embedder.Embed(ctx, task)
	if err != nil {
		return fmt.Errorf("unifieddata: embed episode task: %w", err)
	}

	s.episodeMu.Lock()
	defer s.episodeMu.Unlock()
	s.episodes = append(s.episodes, episodeRecord{
		Episode: Episode{
			AgentID:   agentID,
			Task:      task,
			Success:   success,
			Output:    output,
			Critique:  critique,
			Timestamp: time.Now(),
		},
		taskEmbedding: embedding,
	})
	return nil
}

// LoadContext returns up to limit episodes recorded for agentID. When task
// is empty, the most recent limit episodes are returned in chronological
// order. When task is non-empty, episodes are ranked by embedding
// similarity to task (most similar first) instead of recency.
func (s *Service) LoadContext(ctx context.Context, agentID, task string, limit int) ([]Episode, error) {
	s.episodeMu.Lock()
	matching := make([]episodeRecord, 0, len(s.episodes))
	for _, ep := range s.episodes {
		if ep.AgentID == agentID {
			matching = append(matching, ep)
		}
	}
	s.episodeMu.Unlock()

	if task == "" {
		if len(matching) > limit {
			matching = matching[len(matching)-limit:]
		}
		out := make([]Episode, len(matching))
		for i, ep := range matching {
			out[i] = ep.Episode
		}
		return out, nil
	}

	queryEmbedding, err := s.embedder.Embed(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("unifieddata: embed context query: %w", err)
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return cosineSimilarity(queryEmbedding, matching[i].taskEmbedding) >
			cosineSimilarity(queryEmbedding, matching[j].taskEmbedding)
	})
	if len(matching) > limit {
		matching = matching[:limit]
	}
	out := make([]Episode, len(matching))
	for i, ep := range matching {
		out[i] = ep.Episode
	}
	return out, nil
}
