package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestoreStore keeps each key as a document in one collection. A document
// is limited to 1MiB, which fits knowledge and memory snapshots.
type firestoreStore struct {
	client     *firestore.Client
	collection string
}

type firestoreDoc struct {
	Data      []byte    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestore creates a Firestore backed KVStore
func NewFirestore(ctx context.Context, projectID, databaseID, collection string) (KVStore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &firestoreStore{
		client:     client,
		collection: collection,
	}, nil
}

func (s *firestoreStore) Read(ctx context.Context, key string) ([]byte, error) {
	snap, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("key", key))
	}

	var doc firestoreDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("key", key))
	}
	return doc.Data, nil
}

func (s *firestoreStore) Write(ctx context.Context, key string, data []byte) error {
	doc := firestoreDoc{
		Data:      data,
		UpdatedAt: time.Now(),
	}
	if _, err := s.client.Collection(s.collection).Doc(key).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to set document", goerr.V("key", key))
	}
	return nil
}
