package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

// Claude is an LLM backend on the Anthropic Messages API. It has no
// embedding endpoint.
type Claude struct {
	client *anthropic.Client
	model  string
}

type ClaudeOption func(*Claude)

func WithClaudeModel(model string) ClaudeOption {
	return func(c *Claude) {
		c.model = model
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) *Claude {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	c := &Claude{
		client: &client,
		model:  "claude-3-5-haiku-latest",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Claude) Complete(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
	system, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range rest {
		if m.Role == model.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create claude message", goerr.V("model", c.model))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
