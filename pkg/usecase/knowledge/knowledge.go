package knowledge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/chunk"
	"github.com/m-mizutani/recall/pkg/utils/debounce"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

const (
	// StorageKey is the key of the knowledge blob in the KVStore
	StorageKey = "knowledge.json"

	sourceID            = "knowledge"
	defaultTopK         = 4
	defaultPersistDelay = 500 * time.Millisecond
)

type snapshot struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Engine answers queries from a single freeform text blob by keyword overlap.
// It has no external dependency and is always available.
type Engine struct {
	store adapter.KVStore

	mu        sync.RWMutex
	text      string
	chunks    []model.Chunk
	updatedAt time.Time

	persist      *debounce.Debouncer
	persistDelay time.Duration
	chunkSize    int
	overlap      int
	topK         int
}

// Option is a functional option for Engine
type Option func(*Engine)

// WithChunkSize sets the chunk budget and trailing overlap in characters
func WithChunkSize(size, overlap int) Option {
	return func(e *Engine) {
		e.chunkSize = size
		e.overlap = overlap
	}
}

// WithPersistDelay sets the inactivity window before the blob is saved
func WithPersistDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.persistDelay = d
	}
}

// WithTopK sets how many best scoring chunks are considered
func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

// New creates a new knowledge Engine
func New(store adapter.KVStore, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		persistDelay: defaultPersistDelay,
		chunkSize:    chunk.DefaultSize,
		overlap:      chunk.DefaultOverlap,
		topK:         defaultTopK,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.persist = debounce.New(e.persistDelay, func() {
		ctx := logging.With(context.Background(), logging.Default())
		if err := e.save(ctx); err != nil {
			logging.Default().Warn("failed to save knowledge", "error", err)
		}
	})

	return e
}

// Load restores the blob saved by a previous run. A corrupt snapshot is
// discarded with a warning.
func (e *Engine) Load(ctx context.Context) error {
	data, err := e.store.Read(ctx, StorageKey)
	if err != nil {
		return goerr.Wrap(err, "failed to read knowledge")
	}
	if data == nil {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logging.From(ctx).Warn("discarding corrupt knowledge snapshot", "error", err)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.setText(snap.Text, snap.UpdatedAt)
	return nil
}

// SetText replaces the blob, recomputes chunks and schedules a save
func (e *Engine) SetText(text string) {
	e.mu.Lock()
	e.setText(text, time.Now())
	e.mu.Unlock()

	e.persist.Trigger()
}

func (e *Engine) setText(text string, updatedAt time.Time) {
	e.text = text
	e.chunks = chunk.Paragraphs(text, sourceID, e.chunkSize, e.overlap)
	e.updatedAt = updatedAt
}

// Text returns the current blob
func (e *Engine) Text() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.text
}

// Chunks returns the derived chunk list
func (e *Engine) Chunks() []model.Chunk {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.Chunk(nil), e.chunks...)
}

// Flush saves a pending update synchronously
func (e *Engine) Flush(ctx context.Context) error {
	if !e.persist.Cancel() {
		return nil
	}
	return e.save(ctx)
}

func (e *Engine) save(ctx context.Context) error {
	e.mu.RLock()
	snap := snapshot{Text: e.text, UpdatedAt: e.updatedAt}
	e.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal knowledge")
	}
	if err := e.store.Write(ctx, StorageKey, data); err != nil {
		return goerr.Wrap(err, "failed to write knowledge")
	}

	logging.From(ctx).Debug("knowledge saved", "bytes", len(data))
	return nil
}

// IsAvailable always reports true
func (e *Engine) IsAvailable() bool {
	return true
}

func (e *Engine) Status() model.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return model.EngineStatus{
		State:           model.StateAvailable,
		Entries:         len(e.chunks),
		LastRefreshedAt: e.updatedAt,
	}
}
