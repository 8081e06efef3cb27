package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/m-mizutani/recall/pkg/utils/similarity"
)

type scoredEntry struct {
	entry *model.VectorEntry
	score float64
}

// RetrieveContext returns the chunks most similar to query, each prefixed by
// its source file name. An empty string means no context.
func (e *Engine) RetrieveContext(ctx context.Context, query string) string {
	if strings.TrimSpace(query) == "" || !e.IsAvailable() {
		return ""
	}

	logger := logging.From(ctx)

	embedCtx, cancel := context.WithTimeout(ctx, e.embedTimeout)
	defer cancel()
	queryVec, err := e.embedder.EmbedOne(embedCtx, query)
	if err != nil {
		logger.Warn("failed to embed query", "error", err)
		return ""
	}

	e.mu.RLock()
	entries := e.snapshot.Entries
	e.mu.RUnlock()

	scored := make([]scoredEntry, 0, len(entries))
	for _, entry := range entries {
		scored = append(scored, scoredEntry{
			entry: entry,
			score: similarity.Cosine(queryVec, entry.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > e.topK {
		scored = scored[:e.topK]
	}

	var parts []string
	for _, s := range scored {
		if s.score < e.minSimilarity {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", s.entry.Source, s.entry.Content))
	}

	logger.Debug("vector retrieved", "candidates", len(entries), "chunks", len(parts))
	return strings.Join(parts, "\n\n")
}
