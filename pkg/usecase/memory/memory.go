package memory

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/debounce"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

const (
	// StorageKey is the key of the memory snapshot in the KVStore
	StorageKey = "memories.json"

	defaultCapacity     = 200
	defaultTopK         = 3
	defaultPersistDelay = 500 * time.Millisecond
	defaultProbeTimeout = 3 * time.Second
	defaultEmbedTimeout = 10 * time.Second
)

// Engine stores summarized chat exchanges and retrieves the ones relevant
// to a new message. Entries are appended and evicted by a single writer.
type Engine struct {
	store    adapter.KVStore
	embedder adapter.Embedder
	llm      adapter.LLM
	policy   *Policy

	mu      sync.Mutex
	state   model.EngineState
	entries []*model.MemoryEntry

	backfilling atomic.Bool
	persist     *debounce.Debouncer

	capacity     int
	topK         int
	persistDelay time.Duration
	probeTimeout time.Duration
	embedTimeout time.Duration
	now          func() time.Time
}

// Option is a functional option for Engine
type Option func(*Engine)

// WithEmbedder sets the embedding backend shared with the vector engine
func WithEmbedder(embedder adapter.Embedder) Option {
	return func(e *Engine) {
		e.embedder = embedder
	}
}

// WithLLM sets the summarizer. Without it the raw exchange is truncated.
func WithLLM(llm adapter.LLM) Option {
	return func(e *Engine) {
		e.llm = llm
	}
}

// WithPolicy sets the Rego admission policy
func WithPolicy(policy *Policy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

func WithCapacity(n int) Option {
	return func(e *Engine) {
		e.capacity = n
	}
}

func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

func WithPersistDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.persistDelay = d
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a new memory Engine
func New(store adapter.KVStore, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		state:        model.StateUninitialized,
		capacity:     defaultCapacity,
		topK:         defaultTopK,
		persistDelay: defaultPersistDelay,
		probeTimeout: defaultProbeTimeout,
		embedTimeout: defaultEmbedTimeout,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.persist = debounce.New(e.persistDelay, func() {
		ctx := logging.With(context.Background(), logging.Default())
		if err := e.save(ctx); err != nil {
			logging.Default().Warn("failed to save memories", "error", err)
		}
	})

	return e
}

func (e *Engine) modelName() string {
	if e.embedder == nil {
		return ""
	}
	return e.embedder.ModelName()
}

// Connect probes the embedding backend. Without a reachable backend entries
// are stored unembedded and retrieval returns nothing.
func (e *Engine) Connect(ctx context.Context) bool {
	e.setState(model.StateConnecting)

	if e.embedder == nil {
		e.setState(model.StateUnavailable)
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	result, err := e.embedder.Probe(probeCtx)
	if err != nil || !result.OK() {
		logging.From(ctx).Warn("memory embedding backend is unavailable",
			"model", e.embedder.ModelName(),
			"error", err)
		e.setState(model.StateUnavailable)
		return false
	}

	e.setState(model.StateAvailable)
	return true
}

func (e *Engine) setState(state model.EngineState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

// IsAvailable reports whether the embedding backend is connected
func (e *Engine) IsAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == model.StateAvailable
}

func (e *Engine) Status() model.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.EngineStatus{
		State:   e.state,
		Entries: len(e.entries),
	}
}

// Entries returns copies of the stored entries, oldest first
func (e *Engine) Entries() []*model.MemoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := make([]*model.MemoryEntry, len(e.entries))
	for i, entry := range e.entries {
		entries[i] = entry.Copy()
	}
	return entries
}

// Load restores the snapshot saved by a previous run. A snapshot embedded
// with another model is dropped entirely and a corrupt one is discarded.
func (e *Engine) Load(ctx context.Context) error {
	logger := logging.From(ctx)

	data, err := e.store.Read(ctx, StorageKey)
	if err != nil {
		return goerr.Wrap(err, "failed to read memories")
	}
	if data == nil {
		return nil
	}

	var snap model.MemorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("discarding corrupt memory snapshot", "error", err)
		return nil
	}

	if snap.Model != e.modelName() {
		logger.Warn("dropping memories embedded with another model",
			"stored", snap.Model,
			"current", e.modelName(),
			"entries", len(snap.Entries))
		return nil
	}

	entries := make([]*model.MemoryEntry, 0, len(snap.Entries))
	for _, entry := range snap.Entries {
		if entry == nil || entry.Summary == "" {
			continue
		}
		if entry.ID == "" {
			entry.ID = model.NewMemoryID()
		}
		entries = append(entries, entry)
	}

	e.mu.Lock()
	e.entries = entries
	evicted := 0
	for len(e.entries) > e.capacity {
		e.evictOne()
		evicted++
	}
	loaded := len(e.entries)
	e.mu.Unlock()

	if evicted > 0 {
		logger.Info("memories over capacity were evicted", "evicted", evicted, "capacity", e.capacity)
		e.persist.Trigger()
	}
	logger.Debug("memories loaded", "entries", loaded)
	return nil
}

// Flush saves a pending mutation synchronously
func (e *Engine) Flush(ctx context.Context) error {
	if !e.persist.Cancel() {
		return nil
	}
	return e.save(ctx)
}

func (e *Engine) save(ctx context.Context) error {
	e.mu.Lock()
	snap := model.MemorySnapshot{
		Model:   e.modelName(),
		Entries: make([]*model.MemoryEntry, len(e.entries)),
	}
	for i, entry := range e.entries {
		snap.Entries[i] = entry.Copy()
	}
	e.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal memories")
	}
	if err := e.store.Write(ctx, StorageKey, data); err != nil {
		return goerr.Wrap(err, "failed to write memories", goerr.V("entries", len(snap.Entries)))
	}
	return nil
}
