package scheduler

import (
	"context"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

type DocumentEngine interface {
	Status() model.EngineStatus
	Initialize(ctx context.Context) *model.RunResult
}

type MemoryEngine interface {
	Status() model.EngineStatus
	Connect(ctx context.Context) bool
	Backfill(ctx context.Context) int
}

type SchemaEngine interface {
	Refresh(ctx context.Context) (*model.RunResult, error)
}

// ReconnectDocuments retries initialization of a document engine whose
// embedding backend was down
func ReconnectDocuments(engine DocumentEngine) func(ctx context.Context) {
	return func(ctx context.Context) {
		if engine.Status().State != model.StateUnavailable {
			return
		}
		result := engine.Initialize(ctx)
		logging.From(ctx).Info("document engine reconnect", "status", result.Status, "entries", result.Entries)
	}
}

// BackfillMemories reconnects the memory engine when needed and embeds the
// entries stored while the backend was down
func BackfillMemories(engine MemoryEngine) func(ctx context.Context) {
	return func(ctx context.Context) {
		if engine.Status().State == model.StateUnavailable && !engine.Connect(ctx) {
			return
		}
		if n := engine.Backfill(ctx); n > 0 {
			logging.From(ctx).Info("memories backfilled", "count", n)
		}
	}
}

// RefreshSchema reloads the database catalog
func RefreshSchema(engine SchemaEngine) func(ctx context.Context) {
	return func(ctx context.Context) {
		result, err := engine.Refresh(ctx)
		if err != nil {
			logging.From(ctx).Warn("schema refresh failed", "error", err)
			return
		}
		logging.From(ctx).Info("schema refreshed", "status", result.Status, "tables", result.Entries)
	}
}
