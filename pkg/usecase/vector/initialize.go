package vector

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

// Probe checks that the embedding backend answers within the probe timeout
// and serves the configured model
func (e *Engine) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	logger := logging.From(ctx)
	result, err := e.embedder.Probe(ctx)
	if err != nil {
		logger.Warn("embedding backend is unreachable", "error", err)
		return false
	}
	if !result.Available {
		logger.Warn("embedding backend is unavailable")
		return false
	}
	if !result.ModelPresent {
		logger.Warn("embedding model is not present", "model", e.embedder.ModelName())
		return false
	}
	return true
}

// Initialize probes the backend, then accepts the persisted snapshot when it
// still matches the corpus or runs a full index pass otherwise
func (e *Engine) Initialize(ctx context.Context) *model.RunResult {
	logger := logging.From(ctx)
	e.setState(model.StateConnecting)

	if !e.Probe(ctx) {
		e.setState(model.StateUnavailable)
		return &model.RunResult{Status: model.RunFailed}
	}

	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		logger.Warn("failed to load vector snapshot", "error", err)
	}

	if snap != nil {
		files, err := listFiles(e.dir)
		if err != nil {
			logger.Warn("failed to list corpus files", "error", err, "dir", e.dir)
		} else if e.cacheValid(snap, files) {
			e.mu.Lock()
			e.snapshot = snap
			e.state = model.StateAvailable
			e.mu.Unlock()

			logger.Info("vector cache is up to date",
				"files", len(snap.Files),
				"entries", len(snap.Entries))
			return &model.RunResult{
				Status:  model.RunCached,
				Files:   len(snap.Files),
				Entries: len(snap.Entries),
			}
		}
	}

	result, err := e.Index(ctx)
	if err != nil {
		logger.Warn("failed to index corpus", "error", err)
	}
	return result
}

func (e *Engine) loadSnapshot(ctx context.Context) (*model.VectorSnapshot, error) {
	data, err := e.store.Read(ctx, StorageKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read vector snapshot")
	}
	if data == nil {
		return nil, nil
	}

	var snap model.VectorSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logging.From(ctx).Warn("discarding corrupt vector snapshot", "error", err)
		return nil, nil
	}
	return &snap, nil
}

// cacheValid accepts snap only when the model matches, every entry has the
// same non-zero dimension, the file count matches and every present file has
// exactly the cached mtime
func (e *Engine) cacheValid(snap *model.VectorSnapshot, files []*corpusFile) bool {
	if snap.Model != e.embedder.ModelName() {
		return false
	}
	if !uniformDimension(snap.Entries) {
		return false
	}
	if len(files) != len(snap.Files) {
		return false
	}
	for _, f := range files {
		mtime, ok := snap.Files[f.name]
		if !ok || mtime != f.mtimeMs {
			return false
		}
	}
	return true
}

func uniformDimension(entries []*model.VectorEntry) bool {
	dim := -1
	for _, entry := range entries {
		if entry == nil || len(entry.Embedding) == 0 {
			return false
		}
		if dim < 0 {
			dim = len(entry.Embedding)
		} else if len(entry.Embedding) != dim {
			return false
		}
	}
	return true
}
