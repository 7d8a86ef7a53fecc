package codegen

import (
	"context"

	"github.com/sitegen-ai/sitegen/internal/history"
	"github.com/sitegen-ai/sitegen/internal/log"
)

// HistorySource is the slice of the chat store the loader needs.
// *history.Store satisfies it.
type HistorySource interface {
	Recent(ctx context.Context, appID int64, limit int, skipNewest bool) ([]history.Turn, error)
}

// LoadMemory rebuilds a conversation window from persisted turns. The
// window is cleared first so reloading never accumulates duplicates.
// Turns with unrecognized roles are skipped. Any retrieval failure is
// logged and degrades to an empty window; generation proceeds without
// history rather than failing. Returns the number of turns loaded.
func LoadMemory(ctx context.Context, mem *Memory, src HistorySource, appID int64, maxTurns int, skipNewest bool, logger log.Logger) int {
	mem.Clear()

	turns, err := src.Recent(ctx, appID, maxTurns, skipNewest)
	if err != nil {
		logger.Warn("loading chat history, continuing with empty memory",
			"app_id", appID, "error", err)
		return 0
	}

	loaded := 0
	for _, t := range turns {
		switch t.Role {
		case history.RoleUser:
			mem.AddUserText(t.Content)
		case history.RoleAI:
			mem.AddModelText(t.Content)
		default:
			logger.Debug("skipping turn with unknown role",
				"app_id", appID, "role", t.Role)
			continue
		}
		loaded++
	}

	logger.Debug("conversation memory loaded", "app_id", appID, "turns", loaded)
	return loaded
}
