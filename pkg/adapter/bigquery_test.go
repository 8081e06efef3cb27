package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/adapter"
)

func TestBigQuery(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT")
	if projectID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT is not set")
	}

	datasetID := os.Getenv("TEST_BIGQUERY_DATASET")
	if datasetID == "" {
		t.Skip("TEST_BIGQUERY_DATASET is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewBigQuery(ctx, projectID, datasetID)
	gt.NoError(t, err)
	defer client.Close()

	info, err := client.Introspect(ctx)
	gt.NoError(t, err)
	gt.A(t, info.Tables).Longer(0)
	gt.False(t, info.LastRefreshedAt.IsZero())

	for _, tbl := range info.Tables {
		gt.Equal(t, tbl.Schema, datasetID)
		t.Logf("Table: %s (%d columns)", tbl.QualifiedName(), len(tbl.Columns))
	}
}
