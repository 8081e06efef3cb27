package vector

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/chunk"
)

const (
	// StorageKey is the key of the corpus snapshot in the KVStore
	StorageKey = "vectors.json"

	defaultBatchSize     = 10
	defaultTopK          = 4
	defaultMinSimilarity = 0.3
	defaultProbeTimeout  = 3 * time.Second
	defaultEmbedTimeout  = 30 * time.Second
)

// Engine maintains embedded chunks of a directory of text and markdown files
// and answers similarity queries against them
type Engine struct {
	embedder adapter.Embedder
	store    adapter.KVStore
	dir      string

	mu       sync.RWMutex
	state    model.EngineState
	snapshot *model.VectorSnapshot

	running atomic.Bool

	chunkSize     int
	overlap       int
	batchSize     int
	topK          int
	minSimilarity float64
	probeTimeout  time.Duration
	embedTimeout  time.Duration
}

// Option is a functional option for Engine
type Option func(*Engine)

// WithChunkSize sets the chunk budget and overlap in characters
func WithChunkSize(size, overlap int) Option {
	return func(e *Engine) {
		e.chunkSize = size
		e.overlap = overlap
	}
}

// WithBatchSize sets how many chunks are embedded per request
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		e.batchSize = n
	}
}

func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

// WithMinSimilarity sets the cosine similarity floor of returned chunks
func WithMinSimilarity(v float64) Option {
	return func(e *Engine) {
		e.minSimilarity = v
	}
}

func WithProbeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.probeTimeout = d
	}
}

// New creates a new vector Engine over the files in dir
func New(embedder adapter.Embedder, store adapter.KVStore, dir string, opts ...Option) *Engine {
	e := &Engine{
		embedder:      embedder,
		store:         store,
		dir:           dir,
		state:         model.StateUninitialized,
		chunkSize:     chunk.DefaultSize,
		overlap:       chunk.DefaultOverlap,
		batchSize:     defaultBatchSize,
		topK:          defaultTopK,
		minSimilarity: defaultMinSimilarity,
		probeTimeout:  defaultProbeTimeout,
		embedTimeout:  defaultEmbedTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) setState(state model.EngineState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

// IsAvailable reports whether retrieval can be served. The previous
// snapshot keeps being served while an index pass runs.
func (e *Engine) IsAvailable() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot != nil && (e.state == model.StateAvailable || e.state == model.StateIndexing)
}

func (e *Engine) Status() model.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := model.EngineStatus{State: e.state}
	if e.snapshot != nil {
		status.Entries = len(e.snapshot.Entries)
		status.Files = len(e.snapshot.Files)
		status.LastRefreshedAt = e.snapshot.IndexedAt
	}
	return status
}
