package memory

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/m-mizutani/recall/pkg/utils/similarity"
)

const (
	summaryMaxTokens      = 80
	summaryTemperature    = 0.2
	fallbackSummaryLength = 150
	duplicateThreshold    = 0.9
)

//go:embed prompt/summarize.md
var summarizePromptRaw string

var summarizePromptTmpl = template.Must(template.New("summarize").Parse(summarizePromptRaw))

// Record offers a chat exchange to the memory. Short, trivial, denied and
// near-duplicate exchanges are not stored; the result tells which.
func (e *Engine) Record(ctx context.Context, userText, assistantText string) (*model.RecordResult, error) {
	logger := logging.From(ctx)

	if tooShort(userText, assistantText) {
		return &model.RecordResult{Status: model.RecordTooShort}, nil
	}
	if isGreeting(userText) || isFailure(assistantText) {
		return &model.RecordResult{Status: model.RecordTrivial}, nil
	}

	if e.policy != nil {
		reasons, err := e.policy.Deny(ctx, userText, assistantText)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to apply memory policy")
		}
		if len(reasons) > 0 {
			logger.Debug("exchange denied by policy", "reasons", reasons)
			return &model.RecordResult{Status: model.RecordDeniedByPolicy}, nil
		}
	}

	entry := &model.MemoryEntry{
		ID:          model.NewMemoryID(),
		Summary:     e.summarize(ctx, userText, assistantText),
		TimestampMs: e.now().UnixMilli(),
	}

	if e.IsAvailable() {
		vec, err := e.embed(ctx, entry.Summary)
		if err != nil {
			logger.Warn("failed to embed memory, storing without embedding", "error", err)
		} else {
			entry.Embedding = vec
		}
	}

	e.mu.Lock()
	if n := len(e.entries); n > 0 && entry.HasEmbedding() {
		last := e.entries[n-1]
		if last.HasEmbedding() && similarity.Cosine(entry.Embedding, last.Embedding) > duplicateThreshold {
			e.mu.Unlock()
			logger.Debug("discarding near-duplicate memory", "summary", entry.Summary)
			return &model.RecordResult{Status: model.RecordDuplicate}, nil
		}
	}

	e.entries = append(e.entries, entry)
	var evicted *model.MemoryEntry
	if len(e.entries) > e.capacity {
		evicted = e.evictOne().Copy()
	}
	stored := entry.Copy()
	e.mu.Unlock()

	if evicted != nil {
		logger.Debug("memory evicted", "id", evicted.ID, "retrieval_count", evicted.RetrievalCount)
	}
	logger.Debug("memory stored", "id", stored.ID, "embedded", stored.HasEmbedding())

	e.persist.Trigger()
	return &model.RecordResult{Status: model.RecordStored, Entry: stored}, nil
}

// evictOne removes the entry with the lowest retrievalCount*1000 + ts/1e10.
// The first minimum wins on ties. Caller must hold e.mu.
func (e *Engine) evictOne() *model.MemoryEntry {
	victim := 0
	best := evictionScore(e.entries[0])
	for i, entry := range e.entries[1:] {
		if s := evictionScore(entry); s < best {
			best = s
			victim = i + 1
		}
	}

	evicted := e.entries[victim]
	e.entries = append(e.entries[:victim], e.entries[victim+1:]...)
	return evicted
}

func evictionScore(entry *model.MemoryEntry) float64 {
	return float64(entry.RetrievalCount)*1000 + float64(entry.TimestampMs)/1e10
}

func (e *Engine) summarize(ctx context.Context, userText, assistantText string) string {
	if e.llm != nil {
		summary, err := e.summarizeWithLLM(ctx, userText, assistantText)
		if err == nil && summary != "" {
			return summary
		}
		logging.From(ctx).Warn("failed to summarize exchange, using raw text", "error", err)
	}
	return fallbackSummary(userText, assistantText)
}

func (e *Engine) summarizeWithLLM(ctx context.Context, userText, assistantText string) (string, error) {
	var prompt bytes.Buffer
	if err := summarizePromptTmpl.Execute(&prompt, map[string]string{
		"User":      strings.TrimSpace(userText),
		"Assistant": strings.TrimSpace(assistantText),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute summarize template")
	}

	resp, err := e.llm.Complete(ctx, []model.Message{
		{Role: model.RoleUser, Content: prompt.String()},
	}, summaryMaxTokens, summaryTemperature)
	if err != nil {
		return "", goerr.Wrap(err, "failed to complete summary")
	}

	return strings.Trim(strings.TrimSpace(resp), `"`), nil
}

func fallbackSummary(userText, assistantText string) string {
	raw := strings.TrimSpace(userText) + " " + strings.TrimSpace(assistantText)
	runes := []rune(raw)
	if len(runes) > fallbackSummaryLength {
		runes = runes[:fallbackSummaryLength]
	}
	return strings.TrimSpace(string(runes))
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.embedTimeout)
	defer cancel()
	return e.embedder.EmbedOne(ctx, text)
}
