package memory

import (
	"context"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

// Backfill embeds entries stored while the backend was down. The pass stops
// at the first failure and marks the engine unavailable. It returns the
// number of entries embedded.
func (e *Engine) Backfill(ctx context.Context) int {
	if !e.IsAvailable() {
		return 0
	}
	if !e.backfilling.CompareAndSwap(false, true) {
		return 0
	}
	defer e.backfilling.Store(false)

	logger := logging.From(ctx)

	type target struct {
		id      model.MemoryID
		summary string
	}
	e.mu.Lock()
	var targets []target
	for _, entry := range e.entries {
		if !entry.HasEmbedding() {
			targets = append(targets, target{id: entry.ID, summary: entry.Summary})
		}
	}
	e.mu.Unlock()

	filled := 0
	for _, t := range targets {
		vec, err := e.embed(ctx, t.summary)
		if err != nil {
			logger.Warn("memory backfill stopped", "error", err, "filled", filled, "remaining", len(targets)-filled)
			e.setState(model.StateUnavailable)
			break
		}

		e.mu.Lock()
		for _, entry := range e.entries {
			if entry.ID == t.id {
				entry.Embedding = vec
				filled++
				break
			}
		}
		e.mu.Unlock()
	}

	if filled > 0 {
		logger.Info("memory backfill done", "filled", filled)
		e.persist.Trigger()
	}
	return filled
}
