package adapter

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/m-mizutani/goerr/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// s3Store implements KVStore on an S3 compatible bucket
type s3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// S3Config holds connection settings of an S3 compatible endpoint
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// NewS3Store creates an S3 backed KVStore. The bucket is created when it
// does not exist.
func NewS3Store(ctx context.Context, cfg S3Config) (KVStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create s3 client", goerr.V("endpoint", cfg.Endpoint))
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to check bucket", goerr.V("bucket", cfg.Bucket))
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, goerr.Wrap(err, "failed to create bucket", goerr.V("bucket", cfg.Bucket))
		}
	}

	return &s3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *s3Store) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path.Join(s.prefix, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get object", goerr.V("key", key))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read object", goerr.V("key", key))
	}
	return data, nil
}

func (s *s3Store) Write(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, path.Join(s.prefix, key),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return goerr.Wrap(err, "failed to put object", goerr.V("key", key))
	}
	return nil
}
