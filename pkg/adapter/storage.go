package adapter

import (
	"context"
	"errors"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// cloudStorage implements KVStore on a Cloud Storage bucket. Objects are
// replaced atomically when the writer is closed.
type cloudStorage struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewCloudStorage creates a new Cloud Storage backed KVStore
func NewCloudStorage(ctx context.Context, bucketName, prefix string) (KVStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &cloudStorage{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
	}, nil
}

func (s *cloudStorage) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucketName).Object(path.Join(s.prefix, key))
}

func (s *cloudStorage) Write(ctx context.Context, key string, data []byte) error {
	writer := s.object(key).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return goerr.Wrap(err, "failed to write to storage", goerr.V("key", key))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("key", key))
	}
	return nil
}

func (s *cloudStorage) Read(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object body", goerr.V("key", key))
	}
	return data, nil
}
