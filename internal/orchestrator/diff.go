package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/flowtwo/graphforge/internal/broadcast"
	"github.com/flowtwo/graphforge/internal/observe"
	"github.com/flowtwo/graphforge/pkg/formate"
	"github.com/flowtwo/graphforge/pkg/store"
)

// episodeAgentUserEdit identifies the episodic-memory entries recorded for
// diffs applied directly by a user, as opposed to the LLM Engine's own
// "llm-engine" entries for LLM-produced operations.
const episodeAgentUserEdit = "orchestrator/user-edit"

// applyOperations parses diffText as a Format E operations block and
// applies it to the (workspaceID, systemID) pair's Unified Data Service.
// On success it records a user-edit episode (except for LLM-origin
// operations), broadcasts a graph_update tagged with
// origin, and appends an audit-log entry whose Diff field is diffText
// verbatim — the only bit-exact persisted artifact the core owns. Nothing
// is applied, recorded, broadcast, or logged if parsing or application
// fails.
func (o *Orchestrator) applyOperations(ctx context.Context, workspaceID, systemID, chatID, userID, diffText string, origin broadcast.Origin) error {
	diff, err := formate.ParseDiff(diffText)
	if err != nil {
		observe.DefaultMetrics().RecordDiffApply(ctx, string(origin), false)
		return fmt.Errorf("orchestrator: parse diff: %w", err)
	}

	svc, err := o.Data(ctx, workspaceID, systemID)
	if err != nil {
		observe.DefaultMetrics().RecordDiffApply(ctx, string(origin), false)
		return err
	}

	if err := svc.ApplyDiff(diff); err != nil {
		observe.DefaultMetrics().RecordDiffApply(ctx, string(origin), false)
		return fmt.Errorf("orchestrator: apply diff: %w", err)
	}

	if origin != broadcast.OriginLLMOperation {
		if err := svc.StoreEpisode(ctx, episodeAgentUserEdit, diffText, true, "diff applied", "direct user edit"); err != nil {
			o.logger.Warn("orchestrator: store episode failed", "error", err)
		}
	}

	o.broadcast.Publish(broadcast.Message{
		Type:        broadcast.TypeGraphUpdate,
		WorkspaceID: workspaceID,
		SystemID:    systemID,
		Diff:        diffText,
		Source:      &broadcast.Source{UserID: userID, SessionID: chatID, Origin: origin},
	})

	if err := o.store.CreateAuditLog(ctx, store.AuditLogEntry{
		WorkspaceID: workspaceID,
		SystemID:    systemID,
		ChatID:      chatID,
		UserID:      userID,
		Action:      "apply-diff",
		Diff:        diffText,
		Timestamp:   time.Now().UTC(),
	}); err != nil {
		observe.DefaultMetrics().RecordDiffApply(ctx, string(origin), false)
		return fmt.Errorf("orchestrator: create audit log: %w", err)
	}

	observe.DefaultMetrics().RecordDiffApply(ctx, string(origin), true)
	return nil
}
