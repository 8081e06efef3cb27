package adapter

import (
	"context"
	"errors"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"google.golang.org/api/iterator"
)

// BigQuery introspects the tables of one BigQuery dataset
type BigQuery struct {
	client    *bigquery.Client
	datasetID string
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*BigQuery)

// NewBigQuery creates a new BigQuery catalog bound to datasetID
func NewBigQuery(ctx context.Context, projectID, datasetID string, opts ...BigQueryOption) (*BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client", goerr.V("project", projectID))
	}

	bq := &BigQuery{
		client:    client,
		datasetID: datasetID,
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

// Introspect lists the dataset tables and reads their metadata. Nested
// RECORD fields are flattened as parent.child columns.
func (bq *BigQuery) Introspect(ctx context.Context) (*model.SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultIntrospectTimeout)
	defer cancel()

	b := newSchemaBuilder()
	dataset := bq.client.Dataset(bq.datasetID)

	it := dataset.Tables(ctx)
	for {
		tbl, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list tables", goerr.V("dataset", bq.datasetID))
		}

		md, err := tbl.Metadata(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get table metadata",
				goerr.V("dataset", bq.datasetID),
				goerr.V("table", tbl.TableID))
		}

		b.addTable(bq.datasetID, tbl.TableID, md.Description)
		for _, col := range flattenFields("", md.Schema) {
			b.addColumn(bq.datasetID, tbl.TableID, col)
		}
	}

	return b.build(), nil
}

func flattenFields(prefix string, schema bigquery.Schema) []*model.ColumnInfo {
	var cols []*model.ColumnInfo
	for _, f := range schema {
		name := f.Name
		if prefix != "" {
			name = prefix + "." + f.Name
		}

		dataType := string(f.Type)
		if f.Repeated {
			dataType = "ARRAY<" + dataType + ">"
		}

		cols = append(cols, &model.ColumnInfo{
			Name:        name,
			DataType:    dataType,
			IsNullable:  !f.Required,
			Description: f.Description,
		})

		if f.Type == bigquery.RecordFieldType && len(f.Schema) > 0 {
			cols = append(cols, flattenFields(name, f.Schema)...)
		}
	}
	return cols
}

func (bq *BigQuery) Close() error {
	return bq.client.Close()
}
