package adapter

import (
	"time"

	"github.com/m-mizutani/recall/pkg/model"
)

// DefaultIntrospectTimeout bounds a full catalog read. Catalog queries on
// large schemas are slow, so it is well above ordinary query timeouts.
const DefaultIntrospectTimeout = 30 * time.Second

// schemaBuilder assembles SchemaInfo from the rows of separate catalog
// queries, keeping tables in catalog order
type schemaBuilder struct {
	info  *model.SchemaInfo
	index map[string]*model.TableInfo
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{
		info:  &model.SchemaInfo{},
		index: make(map[string]*model.TableInfo),
	}
}

func tableKey(schema, name string) string {
	return schema + "\x00" + name
}

func (b *schemaBuilder) addTable(schema, name, description string) {
	key := tableKey(schema, name)
	if _, ok := b.index[key]; ok {
		return
	}
	t := &model.TableInfo{
		Schema:      schema,
		Name:        name,
		Description: description,
	}
	b.index[key] = t
	b.info.Tables = append(b.info.Tables, t)
}

// addColumn ignores columns of unknown tables, such as those of tables
// filtered out of the table query
func (b *schemaBuilder) addColumn(schema, table string, col *model.ColumnInfo) {
	if t, ok := b.index[tableKey(schema, table)]; ok {
		t.Columns = append(t.Columns, col)
	}
}

func (b *schemaBuilder) markPrimaryKey(schema, table, column string) {
	t, ok := b.index[tableKey(schema, table)]
	if !ok {
		return
	}
	for _, c := range t.Columns {
		if c.Name == column {
			c.IsPrimaryKey = true
		}
	}
}

func (b *schemaBuilder) addForeignKey(fk *model.ForeignKey) {
	b.info.ForeignKeys = append(b.info.ForeignKeys, fk)
}

func (b *schemaBuilder) build() *model.SchemaInfo {
	b.info.LastRefreshedAt = time.Now()
	return b.info
}
