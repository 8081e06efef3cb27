package adapter

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// fileStore keeps each key as a file under dir
type fileStore struct {
	dir string
}

// NewFileStore creates a KVStore on the local filesystem. Writes go to a
// temporary file that is renamed over the target.
func NewFileStore(dir string) (KVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create store directory", goerr.V("dir", dir))
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Clean("/"+key))
}

func (s *fileStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read file", goerr.V("key", key))
	}
	return data, nil
}

func (s *fileStore) Write(ctx context.Context, key string, data []byte) error {
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("key", key))
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp file", goerr.V("key", key))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to write temp file", goerr.V("key", key))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to sync temp file", goerr.V("key", key))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temp file", goerr.V("key", key))
	}

	if err := os.Rename(tmpName, target); err != nil {
		return goerr.Wrap(err, "failed to replace file", goerr.V("key", key))
	}
	return nil
}
