package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAI serves embeddings and completions through the OpenAI API or any
// compatible endpoint
type OpenAI struct {
	client         openai.Client
	embeddingModel string
	chatModel      string
}

type openAIOptions struct {
	baseURL        string
	embeddingModel string
	chatModel      string
}

type OpenAIOption func(*openAIOptions)

// WithOpenAIBaseURL points the client to a compatible endpoint
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = url
	}
}

func WithOpenAIEmbeddingModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		o.embeddingModel = model
	}
}

func WithOpenAIChatModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		o.chatModel = model
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	options := openAIOptions{
		embeddingModel: string(openai.EmbeddingModelTextEmbedding3Small),
		chatModel:      "gpt-4o-mini",
	}
	for _, opt := range opts {
		opt(&options)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if options.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(options.baseURL))
	}

	return &OpenAI{
		client:         openai.NewClient(reqOpts...),
		embeddingModel: options.embeddingModel,
		chatModel:      options.chatModel,
	}
}

func (o *OpenAI) ModelName() string {
	return o.embeddingModel
}

func (o *OpenAI) Probe(ctx context.Context) (*model.ProbeResult, error) {
	_, err := o.client.Models.Get(ctx, o.embeddingModel)
	if err == nil {
		return &model.ProbeResult{Available: true, ModelPresent: true}, nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return &model.ProbeResult{Available: true}, nil
	}
	return &model.ProbeResult{}, goerr.Wrap(err, "failed to get openai model", goerr.V("model", o.embeddingModel))
}

func (o *OpenAI) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAI) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embeddings", goerr.V("model", o.embeddingModel))
	}
	if len(resp.Data) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, goerr.New("embedding index out of range", goerr.V("index", d.Index))
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}

func (o *OpenAI) Complete(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(o.chatModel),
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion", goerr.V("model", o.chatModel))
	}
	if len(completion.Choices) == 0 {
		return "", goerr.New("no completion choices returned")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
