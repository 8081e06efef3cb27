package chat

import (
	"context"
	_ "embed"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/tokens"
)

const (
	compressionRatio   = 0.7 // Compress the oldest 70% by token count
	summaryMaxTokens   = 300
	summaryTemperature = 0.2
)

//go:embed prompt/summarize.md
var summarizePromptRaw string

func historyTokens(history []model.Message) int {
	total := 0
	for _, m := range history {
		total += tokens.Count(m.Content)
	}
	return total
}

// compressHistory replaces the oldest turns with one summary message
func compressHistory(ctx context.Context, llm adapter.LLM, history []model.Message) ([]model.Message, error) {
	if len(history) == 0 {
		return nil, goerr.New("history is empty")
	}

	sizes := make([]int, len(history))
	total := 0
	for i, m := range history {
		sizes[i] = tokens.Count(m.Content)
		total += sizes[i]
	}

	threshold := int(float64(total) * compressionRatio)
	cumulative := 0
	compressIndex := 0
	for i, size := range sizes {
		cumulative += size
		if cumulative >= threshold {
			compressIndex = i + 1
			break
		}
	}

	if compressIndex == 0 || compressIndex >= len(history) {
		return nil, goerr.New("insufficient history to compress")
	}

	summary, err := summarizeHistory(ctx, llm, history[:compressIndex])
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize history")
	}

	compressed := []model.Message{{
		Role:    model.RoleUser,
		Content: "=== Previous Conversation Summary ===\n\n" + summary,
	}}
	// Backends expect the conversation to alternate after the summary
	if history[compressIndex].Role == model.RoleUser {
		compressed = append(compressed, model.Message{Role: model.RoleAssistant, Content: "OK."})
	}
	return append(compressed, history[compressIndex:]...), nil
}

func summarizeHistory(ctx context.Context, llm adapter.LLM, history []model.Message) (string, error) {
	messages := append([]model.Message(nil), history...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: summarizePromptRaw})

	summary, err := llm.Complete(ctx, messages, summaryMaxTokens, summaryTemperature)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", goerr.New("empty summary generated")
	}
	return summary, nil
}

// CompressHistoryForTest is a test helper that exposes compressHistory
func CompressHistoryForTest(ctx context.Context, llm adapter.LLM, history []model.Message) ([]model.Message, error) {
	return compressHistory(ctx, llm, history)
}
