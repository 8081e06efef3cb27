package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/usecase/knowledge"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/m-mizutani/recall/pkg/usecase/schema"
	"github.com/m-mizutani/recall/pkg/usecase/vector"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Corpus and state
	docsDir      string
	dataDir      string
	storeBackend string

	// Remote stores
	gcsBucket           string
	firestoreProject    string
	firestoreDatabase   string
	firestoreCollection string
	s3Endpoint          string
	s3AccessKey         string
	s3SecretKey         string
	s3Bucket            string
	s3UseSSL            bool

	// Backends
	embeddingBackend string
	llmBackend       string
	ollamaURL        string
	ollamaEmbedModel string
	ollamaChatModel  string
	geminiProject    string
	geminiLocation   string
	geminiEmbedModel string
	geminiChatModel  string
	openaiAPIKey     string
	openaiBaseURL    string
	openaiEmbedModel string
	openaiChatModel  string
	anthropicAPIKey  string
	claudeModel      string

	// Database catalog
	dbDriver        string
	dbDSN           string
	bigqueryProject string
	bigqueryDataset string
	annotations     string
	maxTables       int64

	// Memory
	policyDir      string
	memoryCapacity int64
}

func envVars(name string) cli.ValueSourceChain {
	return cli.EnvVars("RECALL_" + name)
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     envVars("LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     envVars("LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "docs-dir",
			Usage:       "Folder of .txt and .md documents to index",
			Value:       "docs",
			Sources:     envVars("DOCS_DIR"),
			Destination: &cfg.docsDir,
		},
	}
}

// storeFlags returns flags selecting where engine snapshots are persisted
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Snapshot store (file, bolt, gcs, firestore, s3)",
			Value:       "file",
			Sources:     envVars("STORE"),
			Destination: &cfg.storeBackend,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory of the file and bolt stores",
			Value:       ".recall",
			Sources:     envVars("DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Cloud Storage bucket",
			Sources:     envVars("GCS_BUCKET"),
			Destination: &cfg.gcsBucket,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID of Firestore",
			Sources:     cli.EnvVars("RECALL_FIRESTORE_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     envVars("FIRESTORE_DATABASE"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "firestore-collection",
			Usage:       "Firestore collection of snapshots",
			Value:       "recall",
			Sources:     envVars("FIRESTORE_COLLECTION"),
			Destination: &cfg.firestoreCollection,
		},
		&cli.StringFlag{
			Name:        "s3-endpoint",
			Usage:       "S3 compatible endpoint (host:port)",
			Sources:     envVars("S3_ENDPOINT"),
			Destination: &cfg.s3Endpoint,
		},
		&cli.StringFlag{
			Name:        "s3-access-key",
			Usage:       "S3 access key",
			Sources:     envVars("S3_ACCESS_KEY"),
			Destination: &cfg.s3AccessKey,
		},
		&cli.StringFlag{
			Name:        "s3-secret-key",
			Usage:       "S3 secret key",
			Sources:     envVars("S3_SECRET_KEY"),
			Destination: &cfg.s3SecretKey,
		},
		&cli.StringFlag{
			Name:        "s3-bucket",
			Usage:       "S3 bucket",
			Value:       "recall",
			Sources:     envVars("S3_BUCKET"),
			Destination: &cfg.s3Bucket,
		},
		&cli.BoolFlag{
			Name:        "s3-ssl",
			Usage:       "Use TLS for the S3 endpoint",
			Sources:     envVars("S3_SSL"),
			Destination: &cfg.s3UseSSL,
		},
	}
}

// embeddingFlags returns flags for the embedding backend with destination config
func embeddingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding",
			Usage:       "Embedding backend (ollama, gemini, openai)",
			Value:       "ollama",
			Sources:     envVars("EMBEDDING"),
			Destination: &cfg.embeddingBackend,
		},
		&cli.StringFlag{
			Name:        "ollama-url",
			Usage:       "Ollama server URL",
			Sources:     cli.EnvVars("RECALL_OLLAMA_URL", "OLLAMA_HOST"),
			Destination: &cfg.ollamaURL,
		},
		&cli.StringFlag{
			Name:        "ollama-embedding-model",
			Usage:       "Ollama embedding model",
			Value:       "nomic-embed-text",
			Sources:     envVars("OLLAMA_EMBEDDING_MODEL"),
			Destination: &cfg.ollamaEmbedModel,
		},
		&cli.StringFlag{
			Name:        "gemini-embedding-model",
			Usage:       "Gemini embedding model",
			Value:       "gemini-embedding-001",
			Sources:     envVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.geminiEmbedModel,
		},
		&cli.StringFlag{
			Name:        "openai-embedding-model",
			Usage:       "OpenAI embedding model",
			Value:       "text-embedding-3-small",
			Sources:     envVars("OPENAI_EMBEDDING_MODEL"),
			Destination: &cfg.openaiEmbedModel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm",
			Usage:       "LLM backend (ollama, gemini, openai, claude, none)",
			Value:       "ollama",
			Sources:     envVars("LLM"),
			Destination: &cfg.llmBackend,
		},
		&cli.StringFlag{
			Name:        "ollama-chat-model",
			Usage:       "Ollama chat model",
			Value:       "llama3.2",
			Sources:     envVars("OLLAMA_CHAT_MODEL"),
			Destination: &cfg.ollamaChatModel,
		},
		&cli.StringFlag{
			Name:        "gemini-chat-model",
			Usage:       "Gemini generative model",
			Value:       "gemini-2.5-flash",
			Sources:     envVars("GEMINI_CHAT_MODEL"),
			Destination: &cfg.geminiChatModel,
		},
		&cli.StringFlag{
			Name:        "openai-chat-model",
			Usage:       "OpenAI chat model",
			Value:       "gpt-4o-mini",
			Sources:     envVars("OPENAI_CHAT_MODEL"),
			Destination: &cfg.openaiChatModel,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model",
			Value:       "claude-3-5-haiku-latest",
			Sources:     envVars("CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
	}
}

// cloudFlags returns credentials shared by embedding and LLM backends
func cloudFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "OpenAI compatible API base URL",
			Sources:     envVars("OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
	}
}

// databaseFlags returns flags of the catalog introspected by the schema engine
func databaseFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db-driver",
			Usage:       "Database driver (postgres, sqlite, bigquery). Empty disables schema context",
			Sources:     envVars("DB_DRIVER"),
			Destination: &cfg.dbDriver,
		},
		&cli.StringFlag{
			Name:        "db-dsn",
			Usage:       "PostgreSQL DSN or SQLite file path",
			Sources:     envVars("DB_DSN"),
			Destination: &cfg.dbDSN,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "BigQuery project ID",
			Sources:     envVars("BIGQUERY_PROJECT"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset ID",
			Sources:     envVars("BIGQUERY_DATASET"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "schema-annotations",
			Usage:       "YAML file of table and column descriptions",
			Sources:     envVars("SCHEMA_ANNOTATIONS"),
			Destination: &cfg.annotations,
		},
		&cli.IntFlag{
			Name:        "max-tables",
			Usage:       "Maximum number of tables in schema context",
			Value:       15,
			Sources:     envVars("MAX_TABLES"),
			Destination: &cfg.maxTables,
		},
	}
}

// memoryFlags returns flags of the episodic memory engine
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego files vetoing memory admission",
			Sources:     envVars("POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.IntFlag{
			Name:        "memory-capacity",
			Usage:       "Maximum number of stored memories",
			Value:       200,
			Sources:     envVars("MEMORY_CAPACITY"),
			Destination: &cfg.memoryCapacity,
		},
	}
}

// setupLogger installs the default logger and returns ctx carrying it
func (cfg *config) setupLogger(ctx context.Context, w io.Writer) context.Context {
	var opts []logging.Option
	if cfg.logFormat == "json" {
		opts = append(opts, logging.WithJSON())
	}
	logger := logging.New(cfg.logLevel, w, opts...)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newStore creates the snapshot store. The returned closer releases it.
func (cfg *config) newStore(ctx context.Context) (adapter.KVStore, func(), error) {
	noop := func() {}

	switch cfg.storeBackend {
	case "", "file":
		store, err := adapter.NewFileStore(cfg.dataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "bolt":
		if err := os.MkdirAll(cfg.dataDir, 0755); err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create data directory", goerr.V("dir", cfg.dataDir))
		}
		store, err := adapter.NewBoltStore(filepath.Join(cfg.dataDir, "recall.db"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logging.From(ctx).Warn("failed to close bolt store", "error", err)
			}
		}, nil

	case "gcs":
		if cfg.gcsBucket == "" {
			return nil, nil, goerr.New("gcs-bucket is required")
		}
		store, err := adapter.NewCloudStorage(ctx, cfg.gcsBucket, "recall")
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "firestore":
		if cfg.firestoreProject == "" {
			return nil, nil, goerr.New("firestore-project is required")
		}
		store, err := adapter.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase, cfg.firestoreCollection)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "s3":
		if cfg.s3Endpoint == "" {
			return nil, nil, goerr.New("s3-endpoint is required")
		}
		store, err := adapter.NewS3Store(ctx, adapter.S3Config{
			Endpoint:  cfg.s3Endpoint,
			AccessKey: cfg.s3AccessKey,
			SecretKey: cfg.s3SecretKey,
			Bucket:    cfg.s3Bucket,
			UseSSL:    cfg.s3UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}

	return nil, nil, goerr.New("unknown store backend", goerr.V("store", cfg.storeBackend))
}

// newEmbedder creates the embedding backend shared by the vector and memory engines
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	switch cfg.embeddingBackend {
	case "", "ollama":
		return adapter.NewOllama(cfg.ollamaURL,
			adapter.WithOllamaEmbeddingModel(cfg.ollamaEmbedModel),
			adapter.WithOllamaChatModel(cfg.ollamaChatModel))

	case "gemini":
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project is required")
		}
		return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
			adapter.WithEmbeddingModel(cfg.geminiEmbedModel),
			adapter.WithGenerativeModel(cfg.geminiChatModel))

	case "openai":
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required")
		}
		return cfg.newOpenAI(), nil
	}

	return nil, goerr.New("unknown embedding backend", goerr.V("embedding", cfg.embeddingBackend))
}

// newLLM creates the completion backend. It returns nil when disabled.
func (cfg *config) newLLM(ctx context.Context) (adapter.LLM, error) {
	switch cfg.llmBackend {
	case "none":
		return nil, nil

	case "", "ollama":
		return adapter.NewOllama(cfg.ollamaURL,
			adapter.WithOllamaEmbeddingModel(cfg.ollamaEmbedModel),
			adapter.WithOllamaChatModel(cfg.ollamaChatModel))

	case "gemini":
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project is required")
		}
		return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
			adapter.WithEmbeddingModel(cfg.geminiEmbedModel),
			adapter.WithGenerativeModel(cfg.geminiChatModel))

	case "openai":
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required")
		}
		return cfg.newOpenAI(), nil

	case "claude":
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required")
		}
		return adapter.NewClaude(cfg.anthropicAPIKey, adapter.WithClaudeModel(cfg.claudeModel)), nil
	}

	return nil, goerr.New("unknown llm backend", goerr.V("llm", cfg.llmBackend))
}

func (cfg *config) newOpenAI() *adapter.OpenAI {
	opts := []adapter.OpenAIOption{
		adapter.WithOpenAIEmbeddingModel(cfg.openaiEmbedModel),
		adapter.WithOpenAIChatModel(cfg.openaiChatModel),
	}
	if cfg.openaiBaseURL != "" {
		opts = append(opts, adapter.WithOpenAIBaseURL(cfg.openaiBaseURL))
	}
	return adapter.NewOpenAI(cfg.openaiAPIKey, opts...)
}

// newCatalog opens the database catalog. It returns nil when no driver is set.
func (cfg *config) newCatalog(ctx context.Context) (adapter.Catalog, error) {
	switch cfg.dbDriver {
	case "":
		return nil, nil

	case "postgres":
		if cfg.dbDSN == "" {
			return nil, goerr.New("db-dsn is required")
		}
		return adapter.NewPostgres(ctx, cfg.dbDSN)

	case "sqlite":
		if cfg.dbDSN == "" {
			return nil, goerr.New("db-dsn is required")
		}
		return adapter.NewSQLite(ctx, cfg.dbDSN)

	case "bigquery":
		if cfg.bigqueryProject == "" || cfg.bigqueryDataset == "" {
			return nil, goerr.New("bigquery-project and bigquery-dataset are required")
		}
		return adapter.NewBigQuery(ctx, cfg.bigqueryProject, cfg.bigqueryDataset)
	}

	return nil, goerr.New("unknown database driver", goerr.V("driver", cfg.dbDriver))
}

// newKnowledge creates the knowledge engine and loads its snapshot
func (cfg *config) newKnowledge(ctx context.Context, store adapter.KVStore) (*knowledge.Engine, error) {
	engine := knowledge.New(store)
	if err := engine.Load(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to load knowledge")
	}
	return engine, nil
}

// newVector creates the vector engine. Initialize is left to the caller.
func (cfg *config) newVector(embedder adapter.Embedder, store adapter.KVStore) *vector.Engine {
	return vector.New(embedder, store, cfg.docsDir)
}

// newMemory creates the memory engine, loads its snapshot and probes the
// embedding backend
func (cfg *config) newMemory(ctx context.Context, store adapter.KVStore, embedder adapter.Embedder, llm adapter.LLM) (*memory.Engine, error) {
	opts := []memory.Option{
		memory.WithCapacity(int(cfg.memoryCapacity)),
	}
	if embedder != nil {
		opts = append(opts, memory.WithEmbedder(embedder))
	}
	if llm != nil {
		opts = append(opts, memory.WithLLM(llm))
	}
	if cfg.policyDir != "" {
		policy, err := memory.LoadPolicy(ctx, cfg.policyDir)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load memory policy")
		}
		if policy != nil {
			opts = append(opts, memory.WithPolicy(policy))
		}
	}

	engine := memory.New(store, opts...)
	engine.Connect(ctx)
	if err := engine.Load(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to load memories")
	}
	return engine, nil
}

// newSchema creates the schema engine and runs the first refresh. A missing
// or unreachable database leaves the engine unavailable. The returned closer
// releases the database connection.
func (cfg *config) newSchema(ctx context.Context) (*schema.Engine, func()) {
	logger := logging.From(ctx)

	opts := []schema.Option{
		schema.WithMaxTables(int(cfg.maxTables)),
	}
	if cfg.annotations != "" {
		ann, err := schema.LoadAnnotations(cfg.annotations)
		if err != nil {
			logger.Warn("failed to load schema annotations", "error", err, "path", cfg.annotations)
		} else {
			opts = append(opts, schema.WithAnnotations(ann))
		}
	}

	catalog, err := cfg.newCatalog(ctx)
	if err != nil {
		logger.Warn("database is unavailable", "error", err, "driver", cfg.dbDriver)
		catalog = nil
	}
	if catalog == nil {
		return schema.New(nil, opts...), func() {}
	}

	engine := schema.New(catalog, opts...)
	engine.Connect(ctx)
	return engine, func() {
		if err := catalog.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}
}
