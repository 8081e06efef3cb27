package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("file", func(t *testing.T) {
		cfg := &config{storeBackend: "file", dataDir: filepath.Join(t.TempDir(), "state")}
		store, closeStore, err := cfg.newStore(ctx)
		gt.NoError(t, err)
		defer closeStore()

		gt.NoError(t, store.Write(ctx, "knowledge.json", []byte("{}")))
		data, err := store.Read(ctx, "knowledge.json")
		gt.NoError(t, err)
		gt.Equal(t, string(data), "{}")
	})

	t.Run("bolt", func(t *testing.T) {
		cfg := &config{storeBackend: "bolt", dataDir: filepath.Join(t.TempDir(), "state")}
		store, closeStore, err := cfg.newStore(ctx)
		gt.NoError(t, err)
		defer closeStore()
		gt.NotNil(t, store)
	})

	t.Run("remote stores need their settings", func(t *testing.T) {
		for _, backend := range []string{"gcs", "firestore", "s3"} {
			cfg := &config{storeBackend: backend}
			_, _, err := cfg.newStore(ctx)
			gt.Error(t, err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := &config{storeBackend: "redis"}
		_, _, err := cfg.newStore(ctx)
		gt.Error(t, err)
	})
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	t.Run("llm disabled", func(t *testing.T) {
		cfg := &config{llmBackend: "none"}
		llm, err := cfg.newLLM(ctx)
		gt.NoError(t, err)
		gt.True(t, llm == nil)
	})

	t.Run("claude needs api key", func(t *testing.T) {
		cfg := &config{llmBackend: "claude"}
		_, err := cfg.newLLM(ctx)
		gt.Error(t, err)
	})

	t.Run("openai embedder", func(t *testing.T) {
		cfg := &config{embeddingBackend: "openai", openaiAPIKey: "sk-test", openaiEmbedModel: "text-embedding-3-small"}
		embedder, err := cfg.newEmbedder(ctx)
		gt.NoError(t, err)
		gt.Equal(t, embedder.ModelName(), "text-embedding-3-small")
	})

	t.Run("unknown embedder", func(t *testing.T) {
		cfg := &config{embeddingBackend: "word2vec"}
		_, err := cfg.newEmbedder(ctx)
		gt.Error(t, err)
	})

	t.Run("no database", func(t *testing.T) {
		cfg := &config{}
		catalog, err := cfg.newCatalog(ctx)
		gt.NoError(t, err)
		gt.True(t, catalog == nil)
	})

	t.Run("database needs dsn", func(t *testing.T) {
		for _, driver := range []string{"postgres", "sqlite", "bigquery"} {
			cfg := &config{dbDriver: driver}
			_, err := cfg.newCatalog(ctx)
			gt.Error(t, err)
		}
	})

	t.Run("schema engine without database", func(t *testing.T) {
		cfg := &config{maxTables: 15}
		engine, closeCatalog := cfg.newSchema(ctx)
		defer closeCatalog()
		gt.False(t, engine.IsAvailable())
		gt.Equal(t, engine.FilteredSchema(ctx, "ventas"), "")
	})
}

func TestRunKnowledge(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")

	gt.True(t, Run(ctx, []string{"recall", "knowledge", "set", "--data-dir", dir, "La tienda abre a las nueve."}) == nil)
	gt.True(t, Run(ctx, []string{"recall", "knowledge", "show", "--data-dir", dir}) == nil)

	cfg := &config{storeBackend: "file", dataDir: dir}
	store, closeStore, err := cfg.newStore(ctx)
	gt.NoError(t, err)
	defer closeStore()

	engine, err := cfg.newKnowledge(ctx, store)
	gt.NoError(t, err)
	gt.Equal(t, engine.Text(), "La tienda abre a las nueve.")
}

func TestRunRetrieveWithoutQuery(t *testing.T) {
	err := Run(context.Background(), []string{"recall", "retrieve"})
	gt.NotNil(t, err)
	gt.Equal(t, err.Code, 1)
}
