package memory

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

// Forget deletes every entry whose summary contains keyword, ignoring case,
// and returns how many were deleted
func (e *Engine) Forget(ctx context.Context, keyword string) int {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return 0
	}

	e.mu.Lock()
	kept := e.entries[:0]
	for _, entry := range e.entries {
		if !strings.Contains(strings.ToLower(entry.Summary), keyword) {
			kept = append(kept, entry)
		}
	}
	removed := len(e.entries) - len(kept)
	clear(e.entries[len(kept):])
	e.entries = kept
	e.mu.Unlock()

	if removed > 0 {
		logging.From(ctx).Info("memories forgotten", "keyword", keyword, "count", removed)
		e.persist.Trigger()
	}
	return removed
}

// Clear deletes all entries and saves synchronously
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	e.entries = nil
	e.mu.Unlock()

	e.persist.Cancel()
	if err := e.save(ctx); err != nil {
		return goerr.Wrap(err, "failed to save cleared memories")
	}

	logging.From(ctx).Info("memories cleared")
	return nil
}
