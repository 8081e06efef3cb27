package knowledge

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/recall/pkg/utils/lexical"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

type scoredChunk struct {
	content string
	score   float64
}

// RetrieveContext returns the chunks that best overlap query, joined by a
// blank line. An empty string means no chunk is relevant.
func (e *Engine) RetrieveContext(ctx context.Context, query string) string {
	tokens := lexical.Tokenize(query)
	if len(tokens) == 0 {
		return ""
	}

	e.mu.RLock()
	scored := make([]scoredChunk, 0, len(e.chunks))
	for _, c := range e.chunks {
		scored = append(scored, scoredChunk{
			content: c.Content,
			score:   lexical.Score(tokens, c.Content),
		})
	}
	e.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > e.topK {
		scored = scored[:e.topK]
	}

	var parts []string
	for _, s := range scored {
		if lexical.IsRelevant(s.score) {
			parts = append(parts, s.content)
		}
	}

	logging.From(ctx).Debug("knowledge retrieved",
		"query_tokens", len(tokens),
		"chunks", len(parts))

	return strings.Join(parts, "\n\n")
}
