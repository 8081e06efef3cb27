package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/ollama/ollama/api"
)

// Ollama talks to a local Ollama server for embeddings and chat completion
type Ollama struct {
	client         *api.Client
	embeddingModel string
	chatModel      string
}

type OllamaOption func(*Ollama)

func WithOllamaEmbeddingModel(model string) OllamaOption {
	return func(o *Ollama) {
		o.embeddingModel = model
	}
}

func WithOllamaChatModel(model string) OllamaOption {
	return func(o *Ollama) {
		o.chatModel = model
	}
}

// NewOllama creates a client for the server at baseURL. An empty baseURL
// uses OLLAMA_HOST or the default local address.
func NewOllama(baseURL string, opts ...OllamaOption) (*Ollama, error) {
	var client *api.Client
	if baseURL == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create ollama client")
		}
		client = c
	} else {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid ollama url", goerr.V("url", baseURL))
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	o := &Ollama{
		client:         client,
		embeddingModel: "nomic-embed-text",
		chatModel:      "llama3.2",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Ollama) ModelName() string {
	return o.embeddingModel
}

// Probe lists local models and looks for the embedding model. A name without
// a tag matches any tag of that model.
func (o *Ollama) Probe(ctx context.Context) (*model.ProbeResult, error) {
	resp, err := o.client.List(ctx)
	if err != nil {
		return &model.ProbeResult{}, goerr.Wrap(err, "failed to list ollama models")
	}

	result := &model.ProbeResult{Available: true}
	for _, m := range resp.Models {
		if ollamaModelMatch(m.Name, o.embeddingModel) || ollamaModelMatch(m.Model, o.embeddingModel) {
			result.ModelPresent = true
			break
		}
	}
	return result, nil
}

func ollamaModelMatch(name, want string) bool {
	if name == want {
		return true
	}
	if !strings.Contains(want, ":") {
		return strings.HasPrefix(name, want+":")
	}
	return false
}

func (o *Ollama) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *Ollama) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed with ollama", goerr.V("model", o.embeddingModel))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(resp.Embeddings)))
	}
	return resp.Embeddings, nil
}

func (o *Ollama) Complete(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:  o.chatModel,
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	var sb strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to chat with ollama", goerr.V("model", o.chatModel))
	}

	return strings.TrimSpace(sb.String()), nil
}
