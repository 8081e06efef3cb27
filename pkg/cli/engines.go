package cli

import (
	"context"

	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/usecase/chat"
	"github.com/m-mizutani/recall/pkg/usecase/knowledge"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/m-mizutani/recall/pkg/usecase/schema"
	"github.com/m-mizutani/recall/pkg/usecase/vector"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// engines bundles every retrieval engine of one process
type engines struct {
	llm       adapter.LLM
	knowledge *knowledge.Engine
	vector    *vector.Engine
	memory    *memory.Engine
	schema    *schema.Engine

	closers []func()
}

func joinFlags(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

// allFlags returns the flags needed to build every engine
func allFlags(cfg *config) []cli.Flag {
	return joinFlags(
		globalFlags(cfg),
		storeFlags(cfg),
		embeddingFlags(cfg),
		llmFlags(cfg),
		cloudFlags(cfg),
		databaseFlags(cfg),
		memoryFlags(cfg),
	)
}

// openEngines builds all engines. The vector engine is not initialized; the
// caller decides whether to wait for indexing.
func (cfg *config) openEngines(ctx context.Context) (*engines, error) {
	e := &engines{}

	store, closeStore, err := cfg.newStore(ctx)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closeStore)

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		e.Close(ctx)
		return nil, err
	}

	llm, err := cfg.newLLM(ctx)
	if err != nil {
		e.Close(ctx)
		return nil, err
	}
	e.llm = llm

	if e.knowledge, err = cfg.newKnowledge(ctx, store); err != nil {
		e.Close(ctx)
		return nil, err
	}
	e.vector = cfg.newVector(embedder, store)
	if e.memory, err = cfg.newMemory(ctx, store, embedder, llm); err != nil {
		e.Close(ctx)
		return nil, err
	}
	var closeCatalog func()
	e.schema, closeCatalog = cfg.newSchema(ctx)
	e.closers = append(e.closers, closeCatalog)

	return e, nil
}

// session creates a chat session grounded on every engine
func (e *engines) session() *chat.Session {
	return chat.New(e.llm,
		chat.WithKnowledge(e.knowledge),
		chat.WithDocuments(e.vector),
		chat.WithMemory(e.memory),
		chat.WithSchema(e.schema),
	)
}

// Close flushes pending snapshots and releases the store
func (e *engines) Close(ctx context.Context) {
	logger := logging.From(ctx)
	if e.knowledge != nil {
		if err := e.knowledge.Flush(ctx); err != nil {
			logger.Warn("failed to flush knowledge", "error", err)
		}
	}
	if e.memory != nil {
		if err := e.memory.Flush(ctx); err != nil {
			logger.Warn("failed to flush memories", "error", err)
		}
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}
