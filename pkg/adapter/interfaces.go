package adapter

import (
	"context"

	"github.com/m-mizutani/recall/pkg/model"
)

// Embedder turns text into vectors. A single instance is shared by the
// vector and memory engines.
type Embedder interface {
	// Probe checks that the backend answers and serves the configured model
	Probe(ctx context.Context) (*model.ProbeResult, error)

	// EmbedOne embeds a single text
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds texts in one request, preserving order
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the embedding model tag stored alongside vectors
	ModelName() string
}

// LLM completes a conversation
type LLM interface {
	Complete(ctx context.Context, messages []model.Message, maxTokens int, temperature float64) (string, error)
}

// KVStore is a durable key-value store for engine snapshots
type KVStore interface {
	// Read returns nil data and nil error when key does not exist
	Read(ctx context.Context, key string) ([]byte, error)

	// Write replaces the value of key
	Write(ctx context.Context, key string, data []byte) error
}

// Catalog introspects a relational database
type Catalog interface {
	Introspect(ctx context.Context) (*model.SchemaInfo, error)
	Close() error
}

// splitSystem separates system messages from the conversation for backends
// taking the system prompt as a dedicated parameter
func splitSystem(messages []model.Message) (string, []model.Message) {
	var system string
	var rest []model.Message
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
