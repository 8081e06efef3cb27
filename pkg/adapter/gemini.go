package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"google.golang.org/genai"
)

// Gemini serves embeddings and completions through Vertex AI
type Gemini struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
}

type GeminiOption func(*Gemini)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *Gemini) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *Gemini) {
		g.embeddingModel = model
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &Gemini{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *Gemini) ModelName() string {
	return g.embeddingModel
}

// Probe fetches the embedding model. A not-found answer means the service is
// up but the model is not served.
func (g *Gemini) Probe(ctx context.Context) (*model.ProbeResult, error) {
	_, err := g.client.Models.Get(ctx, g.embeddingModel, nil)
	if err == nil {
		return &model.ProbeResult{Available: true, ModelPresent: true}, nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return &model.ProbeResult{Available: true}, nil
	}
	return &model.ProbeResult{}, goerr.Wrap(err, "failed to get gemini model", goerr.V("model", g.embeddingModel))
}

func (g *Gemini) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatchSize is the number of inputs one EmbedContent request may carry.
// The gemini-embedding models on Vertex AI accept a single input per request.
func embedBatchSize(model string) int {
	if strings.HasPrefix(model, "gemini-embedding-") {
		return 1
	}
	return 250
}

func (g *Gemini) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	size := embedBatchSize(g.embeddingModel)
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		batch, err := g.embedBatch(ctx, texts[start:min(start+size, len(texts))])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (g *Gemini) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.embeddingModel))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(resp.Embeddings)))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

// EmbedBatchSizeForTest exposes the per-request input limit of a model
func EmbedBatchSizeForTest(model string) int {
	return embedBatchSize(model)
}

func (g *Gemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}
	return resp, nil
}

func (g *Gemini) Complete(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error) {
	system, rest := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     genai.Ptr(float32(temperature)),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, "")
	}

	resp, err := g.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
