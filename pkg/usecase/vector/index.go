package vector

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/chunk"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

var (
	// ErrDimensionMismatch is returned when the backend answers with vectors
	// of different lengths within one pass
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrEmbeddingCount is returned when a batch answer does not match the
	// number of inputs
	ErrEmbeddingCount = goerr.New("unexpected number of embeddings")
)

type corpusFile struct {
	name    string
	path    string
	mtimeMs int64
}

func isCorpusFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// listFiles returns the .txt and .md files under dir sorted by name. Names
// are slash separated paths relative to dir.
func listFiles(dir string) ([]*corpusFile, error) {
	var files []*corpusFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isCorpusFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		files = append(files, &corpusFile{
			name:    filepath.ToSlash(rel),
			path:    path,
			mtimeMs: info.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to walk corpus directory", goerr.V("dir", dir))
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].name < files[j].name
	})
	return files, nil
}

func ensureDir(ctx context.Context, dir string) error {
	_, err := os.Stat(dir)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return goerr.Wrap(err, "failed to stat corpus directory", goerr.V("dir", dir))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create corpus directory", goerr.V("dir", dir))
	}
	logging.From(ctx).Info("created empty corpus directory, add .txt or .md files to it and index again", "dir", dir)
	return nil
}

// Index rebuilds the corpus snapshot from scratch. Only one pass runs at a
// time; a concurrent call returns RunAlreadyRunning immediately.
func (e *Engine) Index(ctx context.Context) (*model.RunResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return &model.RunResult{Status: model.RunAlreadyRunning}, nil
	}
	defer e.running.Store(false)

	e.setState(model.StateIndexing)

	snap, err := e.buildSnapshot(ctx)
	if err != nil {
		e.setState(model.StateUnavailable)
		return &model.RunResult{Status: model.RunFailed}, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		e.setState(model.StateUnavailable)
		return &model.RunResult{Status: model.RunFailed}, goerr.Wrap(err, "failed to marshal vector snapshot")
	}
	if err := e.store.Write(ctx, StorageKey, data); err != nil {
		logging.From(ctx).Warn("failed to persist vector snapshot", "error", err)
	}

	e.mu.Lock()
	e.snapshot = snap
	e.state = model.StateAvailable
	e.mu.Unlock()

	logging.From(ctx).Info("corpus indexed",
		"files", len(snap.Files),
		"entries", len(snap.Entries))

	return &model.RunResult{
		Status:  model.RunCompleted,
		Files:   len(snap.Files),
		Entries: len(snap.Entries),
	}, nil
}

func (e *Engine) buildSnapshot(ctx context.Context) (*model.VectorSnapshot, error) {
	logger := logging.From(ctx)

	if err := ensureDir(ctx, e.dir); err != nil {
		return nil, err
	}
	files, err := listFiles(e.dir)
	if err != nil {
		return nil, err
	}

	snap := &model.VectorSnapshot{
		Model: e.embedder.ModelName(),
		Files: make(map[string]int64, len(files)),
	}

	var pending []*model.VectorEntry
	for _, f := range files {
		// Every listed file is recorded so the cache check sees the same set
		snap.Files[f.name] = f.mtimeMs

		content, err := os.ReadFile(f.path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read corpus file", goerr.V("path", f.path))
		}
		if chunk.IsBinary(content) {
			logger.Warn("skipping binary file", "file", f.name)
			continue
		}

		splitter := chunk.ForFile(f.name, content, e.chunkSize, e.overlap)
		for _, c := range splitter.Split(string(content)) {
			pending = append(pending, &model.VectorEntry{
				Content: c,
				Source:  f.name,
			})
		}
	}

	dim := 0
	for start := 0; start < len(pending); start += e.batchSize {
		end := min(start+e.batchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, entry := range batch {
			texts[i] = entry.Content
		}

		vectors, err := e.embedBatch(ctx, texts)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed chunks",
				goerr.V("batch_start", start),
				goerr.V("batch_size", len(texts)))
		}
		if len(vectors) != len(batch) {
			return nil, goerr.Wrap(ErrEmbeddingCount, "failed to embed chunks",
				goerr.V("expected", len(batch)),
				goerr.V("actual", len(vectors)))
		}

		for i, vec := range vectors {
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim || dim == 0 {
				return nil, goerr.Wrap(ErrDimensionMismatch, "failed to embed chunks",
					goerr.V("expected", dim),
					goerr.V("actual", len(vec)),
					goerr.V("source", batch[i].Source))
			}
			batch[i].Embedding = vec
		}

		logger.Debug("embedded batch", "done", end, "total", len(pending))
	}

	snap.Entries = pending
	snap.IndexedAt = time.Now()
	return snap, nil
}

func (e *Engine) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.embedTimeout)
	defer cancel()
	return e.embedder.EmbedMany(ctx, texts)
}
