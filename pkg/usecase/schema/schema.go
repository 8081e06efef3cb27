package schema

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

const defaultMaxTables = 15

// Engine keeps a snapshot of a relational catalog and renders the part of it
// relevant to a query
type Engine struct {
	catalog     adapter.Catalog
	annotations *Annotations

	mu    sync.RWMutex
	state model.EngineState
	info  *model.SchemaInfo

	refreshing atomic.Bool
	maxTables  int
}

// Option is a functional option for Engine
type Option func(*Engine)

// WithMaxTables sets how many tables a filtered schema shows at most
func WithMaxTables(n int) Option {
	return func(e *Engine) {
		e.maxTables = n
	}
}

// WithAnnotations fills descriptions the catalog does not have
func WithAnnotations(a *Annotations) Option {
	return func(e *Engine) {
		e.annotations = a
	}
}

// New creates a new schema Engine. A nil catalog leaves the engine
// unavailable.
func New(catalog adapter.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog:   catalog,
		state:     model.StateUninitialized,
		maxTables: defaultMaxTables,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Connect reads the catalog for the first time
func (e *Engine) Connect(ctx context.Context) bool {
	if e.catalog == nil {
		e.setState(model.StateUnavailable)
		return false
	}

	e.setState(model.StateConnecting)
	result, err := e.Refresh(ctx)
	if err != nil {
		logging.From(ctx).Warn("failed to read database schema", "error", err)
	}
	return result.Status == model.RunCompleted
}

// Refresh replaces the schema snapshot wholesale. A concurrent call returns
// RunAlreadyRunning.
func (e *Engine) Refresh(ctx context.Context) (*model.RunResult, error) {
	if e.catalog == nil {
		return &model.RunResult{Status: model.RunFailed}, nil
	}
	if !e.refreshing.CompareAndSwap(false, true) {
		return &model.RunResult{Status: model.RunAlreadyRunning}, nil
	}
	defer e.refreshing.Store(false)

	e.setState(model.StateRefreshing)

	info, err := e.catalog.Introspect(ctx)
	if err != nil {
		e.setState(model.StateUnavailable)
		return &model.RunResult{Status: model.RunFailed}, err
	}
	if e.annotations != nil {
		e.annotations.Apply(info)
	}

	e.mu.Lock()
	e.info = info
	e.state = model.StateAvailable
	e.mu.Unlock()

	logging.From(ctx).Info("database schema refreshed",
		"tables", len(info.Tables),
		"foreign_keys", len(info.ForeignKeys))

	return &model.RunResult{Status: model.RunCompleted, Entries: len(info.Tables)}, nil
}

func (e *Engine) setState(state model.EngineState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

// Schema returns the current snapshot, nil before the first refresh
func (e *Engine) Schema() *model.SchemaInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info
}

// IsAvailable reports whether a schema snapshot can be served. The previous
// snapshot keeps being served while a refresh runs.
func (e *Engine) IsAvailable() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info != nil && (e.state == model.StateAvailable || e.state == model.StateRefreshing)
}

func (e *Engine) Status() model.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := model.EngineStatus{State: e.state}
	if e.info != nil {
		status.Entries = len(e.info.Tables)
		status.LastRefreshedAt = e.info.LastRefreshedAt
	}
	return status
}
