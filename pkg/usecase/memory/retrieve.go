package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/m-mizutani/recall/pkg/utils/similarity"
)

const (
	similarityWeight = 0.85
	recencyWeight    = 0.15
	recencyHorizon   = 7 * 24 * time.Hour
	minSimilarity    = 0.55

	retrievePreamble  = "Memories from earlier conversations with this user that may be relevant. Use them only if they help with the current message:"
	retrievePostamble = "Do not mention these memories unless they are useful for the answer."
)

// ScoredMemory is a retrieved entry with its similarity and blended score
type ScoredMemory struct {
	Entry      *model.MemoryEntry
	Similarity float64
	Score      float64
}

// recencyFactor decays linearly from 1 to 0 over recencyHorizon
func recencyFactor(age time.Duration) float64 {
	return math.Max(0, 1-float64(age)/float64(recencyHorizon))
}

// Search returns up to topK entries whose similarity to query is at least
// minSimilarity, ranked by similarity blended with recency. Every returned
// entry has its RetrievalCount incremented.
func (e *Engine) Search(ctx context.Context, query string) []*ScoredMemory {
	logger := logging.From(ctx)

	if strings.TrimSpace(query) == "" || !e.IsAvailable() || !e.hasEmbedded() {
		return nil
	}

	queryVec, err := e.embed(ctx, query)
	if err != nil {
		logger.Warn("failed to embed memory query", "error", err)
		return nil
	}

	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	var candidates []*ScoredMemory
	for _, entry := range e.entries {
		if !entry.HasEmbedding() {
			continue
		}
		sim := similarity.Cosine(queryVec, entry.Embedding)
		if sim < minSimilarity {
			continue
		}
		candidates = append(candidates, &ScoredMemory{
			Entry:      entry,
			Similarity: sim,
			Score:      sim*similarityWeight + recencyFactor(now.Sub(entry.Time()))*recencyWeight,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > e.topK {
		candidates = candidates[:e.topK]
	}

	for _, c := range candidates {
		c.Entry.RetrievalCount++
		c.Entry = c.Entry.Copy()
	}
	if len(candidates) > 0 {
		e.persist.Trigger()
	}

	logger.Debug("memories retrieved", "query", query, "count", len(candidates))
	return candidates
}

// Retrieve returns the relevant memories as a numbered list framed for a
// prompt. An empty string means no memory is relevant.
func (e *Engine) Retrieve(ctx context.Context, query string) string {
	found := e.Search(ctx, query)
	if len(found) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(retrievePreamble)
	b.WriteString("\n")
	for i, m := range found {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Entry.Summary)
	}
	b.WriteString(retrievePostamble)
	return b.String()
}

func (e *Engine) hasEmbedded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.entries {
		if entry.HasEmbedding() {
			return true
		}
	}
	return false
}
