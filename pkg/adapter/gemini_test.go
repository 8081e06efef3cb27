package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
)

func TestGeminiEmbedBatchSize(t *testing.T) {
	gt.Equal(t, adapter.EmbedBatchSizeForTest("gemini-embedding-001"), 1)
	gt.Equal(t, adapter.EmbedBatchSizeForTest("text-embedding-005"), 250)
}

func TestGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)

	t.Run("Probe", func(t *testing.T) {
		probe, err := client.Probe(ctx)
		gt.NoError(t, err)
		gt.True(t, probe.OK())
	})

	t.Run("EmbedMany", func(t *testing.T) {
		vectors, err := client.EmbedMany(ctx, []string{"first text", "second text"})
		gt.NoError(t, err)
		gt.A(t, vectors).Length(2)
		gt.A(t, vectors[0]).Longer(0)
		gt.Equal(t, len(vectors[0]), len(vectors[1]))
	})

	t.Run("Complete", func(t *testing.T) {
		resp, err := client.Complete(ctx, []model.Message{
			{Role: model.RoleSystem, Content: "Answer in one word."},
			{Role: model.RoleUser, Content: "What is the capital of France?"},
		}, 32, 0)
		gt.NoError(t, err)
		gt.S(t, resp).Contains("Paris")
	})
}

func TestOllama(t *testing.T) {
	host := os.Getenv("TEST_OLLAMA_HOST")
	if host == "" {
		t.Skip("TEST_OLLAMA_HOST is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewOllama(host)
	gt.NoError(t, err)

	probe, err := client.Probe(ctx)
	gt.NoError(t, err)
	gt.True(t, probe.Available)
	if !probe.ModelPresent {
		t.Skip("embedding model is not pulled")
	}

	vec, err := client.EmbedOne(ctx, "hello world")
	gt.NoError(t, err)
	gt.A(t, vec).Longer(0)
}

func TestOpenAI(t *testing.T) {
	apiKey := os.Getenv("TEST_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_OPENAI_API_KEY is not set")
	}

	ctx := context.Background()
	client := adapter.NewOpenAI(apiKey)

	vectors, err := client.EmbedMany(ctx, []string{"alpha", "beta", "gamma"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(3)
}

func TestClaude(t *testing.T) {
	apiKey := os.Getenv("TEST_ANTHROPIC_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_ANTHROPIC_API_KEY is not set")
	}

	client := adapter.NewClaude(apiKey)
	resp, err := client.Complete(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "Reply with the word ok."},
	}, 16, 0)
	gt.NoError(t, err)
	gt.S(t, resp).NotContains("error")
}
