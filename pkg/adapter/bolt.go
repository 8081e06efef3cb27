package adapter

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// BoltStore implements KVStore in a single bbolt database file
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the database at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open bolt database", goerr.V("path", path))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to create bucket", goerr.V("path", path))
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketSnapshots).Get([]byte(key)); v != nil {
			// v is only valid inside the transaction
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read bolt key", goerr.V("key", key))
	}
	return data, nil
}

func (s *BoltStore) Write(ctx context.Context, key string, data []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(key), data)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to write bolt key", goerr.V("key", key))
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
