package schema_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/usecase/schema"
)

type mockCatalog struct {
	adapter.Catalog
	introspectFn func(ctx context.Context) (*model.SchemaInfo, error)
}

func (m *mockCatalog) Introspect(ctx context.Context) (*model.SchemaInfo, error) {
	return m.introspectFn(ctx)
}

func (m *mockCatalog) Close() error {
	return nil
}

func table(name, description string, columns ...*model.ColumnInfo) *model.TableInfo {
	return &model.TableInfo{
		Schema:      "public",
		Name:        name,
		Description: description,
		Columns:     columns,
	}
}

func col(name, dataType string) *model.ColumnInfo {
	return &model.ColumnInfo{Name: name, DataType: dataType}
}

// sixteenTables returns a catalog larger than the default cap
func sixteenTables() []*model.TableInfo {
	names := []string{
		"produto", "cliente", "pedido", "item_pedido", "fornecedor", "estoque",
		"categoria", "endereco", "pagamento", "nota_fiscal", "transportadora",
		"cupom", "avaliacao", "devolucao", "vendedor", "campanha",
	}
	tables := make([]*model.TableInfo, len(names))
	for i, name := range names {
		tables[i] = table(name, "", col("id", "integer"), col("created_at", "timestamp"))
	}
	return tables
}

func tableNames(tables []*model.TableInfo) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

func TestKeywords(t *testing.T) {
	t.Run("plural stem reaches table name", func(t *testing.T) {
		keywords := schema.Keywords("vendedores")
		gt.True(t, slices.Contains(keywords, "vendedor"))
		gt.True(t, slices.Contains(keywords, "vend"))
	})

	t.Run("diacritics and stop words", func(t *testing.T) {
		keywords := schema.Keywords("¿Cuántas ventas hicieron los vendedores?")
		gt.True(t, slices.Contains(keywords, "ventas"))
		gt.True(t, slices.Contains(keywords, "venta"))
		gt.False(t, slices.Contains(keywords, "cuantas"))
		gt.False(t, slices.Contains(keywords, "los"))
	})

	t.Run("short tokens dropped", func(t *testing.T) {
		gt.A(t, schema.Keywords("id de la tx")).Length(0)
	})

	t.Run("no stem below four characters", func(t *testing.T) {
		for _, k := range schema.Keywords("datos") {
			gt.True(t, len(k) >= 4)
		}
	})
}

func TestSelectTables(t *testing.T) {
	t.Run("stemmed match on large catalog", func(t *testing.T) {
		selected := schema.SelectTables(sixteenTables(), "¿cuántos vendedores tenemos?", 15)
		names := tableNames(selected)
		gt.True(t, slices.Contains(names, "vendedor"))
		gt.False(t, slices.Contains(names, "produto"))
		gt.Equal(t, names[0], "vendedor")
	})

	t.Run("no keyword returns first tables", func(t *testing.T) {
		tables := sixteenTables()
		selected := schema.SelectTables(tables, "¿y los de la?", 15)
		gt.A(t, selected).Length(15)
		gt.Equal(t, tableNames(selected), tableNames(tables[:15]))
	})

	t.Run("nothing scores returns first tables", func(t *testing.T) {
		tables := sixteenTables()
		selected := schema.SelectTables(tables, "astronomia cuantica", 15)
		gt.Equal(t, tableNames(selected), tableNames(tables[:15]))
	})

	t.Run("under the cap keeps catalog order", func(t *testing.T) {
		tables := sixteenTables()[:3]
		selected := schema.SelectTables(tables, "vendedores", 15)
		gt.Equal(t, tableNames(selected), []string{"produto", "cliente", "pedido"})
	})

	t.Run("weighted by where keywords match", func(t *testing.T) {
		tables := sixteenTables()
		tables[0].Description = "Catálogo de productos vendidos por la tienda"
		tables[1].Columns = append(tables[1].Columns, &model.ColumnInfo{
			Name: "canal", DataType: "text", Description: "Canal donde se vendió",
		})

		selected := schema.SelectTables(tables, "vendidos", 15)
		names := tableNames(selected)
		gt.Equal(t, names, []string{"produto", "vendedor", "cliente"})
	})
}

func TestRender(t *testing.T) {
	info := &model.SchemaInfo{
		Tables: []*model.TableInfo{
			table("vendedor", "Equipe de vendas",
				&model.ColumnInfo{Name: "id", DataType: "integer", IsPrimaryKey: true},
				&model.ColumnInfo{Name: "nome", DataType: "text", Description: "Nome completo"},
			),
			table("venda", "",
				&model.ColumnInfo{Name: "id", DataType: "integer", IsPrimaryKey: true},
				&model.ColumnInfo{Name: "vendedor_id", DataType: "integer"},
			),
			{Schema: "sales", Name: "meta", Columns: []*model.ColumnInfo{col("valor", "numeric")}},
		},
		ForeignKeys: []*model.ForeignKey{
			{Schema: "public", Table: "venda", Column: "vendedor_id", RefSchema: "public", RefTable: "vendedor", RefColumn: "id"},
		},
	}

	t.Run("all tables", func(t *testing.T) {
		got := schema.Render(info, info.Tables)
		gt.Equal(t, got, strings.Join([]string{
			"Database schema: 3 tables, showing 3",
			`vendedor -- Equipe de vendas: id integer PK, nome text "Nome completo"`,
			"venda: id integer PK, vendedor_id integer",
			"sales.meta: valor numeric",
			"Relations: venda.vendedor_id -> vendedor.id",
		}, "\n"))
	})

	t.Run("relations only between shown tables", func(t *testing.T) {
		got := schema.Render(info, info.Tables[1:])
		gt.S(t, got).Contains("showing 2")
		gt.S(t, got).NotContains("Relations")
	})
}

func TestEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("connect and filter", func(t *testing.T) {
		catalog := &mockCatalog{introspectFn: func(ctx context.Context) (*model.SchemaInfo, error) {
			return &model.SchemaInfo{Tables: sixteenTables(), LastRefreshedAt: time.Now()}, nil
		}}
		engine := schema.New(catalog)
		gt.Equal(t, engine.FilteredSchema(ctx, "vendedores"), "")

		gt.True(t, engine.Connect(ctx))
		gt.True(t, engine.IsAvailable())

		got := engine.FilteredSchema(ctx, "vendedores")
		gt.S(t, got).Contains("Database schema: 16 tables")
		gt.S(t, got).Contains("vendedor: id integer")

		// no recognized keyword still yields the first tables
		got = engine.FilteredSchema(ctx, "hola")
		gt.S(t, got).Contains("showing 15")
		gt.S(t, got).NotContains("campanha")

		status := engine.Status()
		gt.Equal(t, status.State, model.StateAvailable)
		gt.Equal(t, status.Entries, 16)
	})

	t.Run("without catalog", func(t *testing.T) {
		engine := schema.New(nil)
		gt.False(t, engine.Connect(ctx))
		gt.Equal(t, engine.Status().State, model.StateUnavailable)
		gt.Equal(t, engine.FilteredSchema(ctx, "vendedores"), "")
	})

	t.Run("introspection failure", func(t *testing.T) {
		catalog := &mockCatalog{introspectFn: func(ctx context.Context) (*model.SchemaInfo, error) {
			return nil, goerr.New("connection refused")
		}}
		engine := schema.New(catalog)
		gt.False(t, engine.Connect(ctx))
		gt.False(t, engine.IsAvailable())

		result, err := engine.Refresh(ctx)
		gt.Error(t, err)
		gt.Equal(t, result.Status, model.RunFailed)
	})

	t.Run("concurrent refresh is rejected", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		catalog := &mockCatalog{introspectFn: func(ctx context.Context) (*model.SchemaInfo, error) {
			close(started)
			<-release
			return &model.SchemaInfo{Tables: sixteenTables()}, nil
		}}
		engine := schema.New(catalog)

		done := make(chan *model.RunResult)
		go func() {
			result, _ := engine.Refresh(ctx)
			done <- result
		}()

		<-started
		gt.Equal(t, engine.Status().State, model.StateRefreshing)
		second, err := engine.Refresh(ctx)
		gt.NoError(t, err)
		gt.Equal(t, second.Status, model.RunAlreadyRunning)

		close(release)
		gt.Equal(t, (<-done).Status, model.RunCompleted)
	})
}

func TestAnnotations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`tables:
  vendedor:
    description: Sales staff
    columns:
      nome: Full name
      id: Should not override
  sales.meta:
    description: Monthly targets
`), 0644))

	annotations, err := schema.LoadAnnotations(path)
	gt.NoError(t, err)

	info := &model.SchemaInfo{Tables: []*model.TableInfo{
		table("vendedor", "",
			&model.ColumnInfo{Name: "id", DataType: "integer", Description: "Catalog comment"},
			col("nome", "text"),
		),
		{Schema: "sales", Name: "meta", Description: "From catalog"},
		table("venda", ""),
	}}
	annotations.Apply(info)

	gt.Equal(t, info.Tables[0].Description, "Sales staff")
	gt.Equal(t, info.Tables[0].Columns[0].Description, "Catalog comment")
	gt.Equal(t, info.Tables[0].Columns[1].Description, "Full name")
	gt.Equal(t, info.Tables[1].Description, "From catalog")
	gt.Equal(t, info.Tables[2].Description, "")

	t.Run("applied on refresh", func(t *testing.T) {
		catalog := &mockCatalog{introspectFn: func(ctx context.Context) (*model.SchemaInfo, error) {
			return &model.SchemaInfo{Tables: []*model.TableInfo{table("vendedor", "", col("nome", "text"))}}, nil
		}}
		engine := schema.New(catalog, schema.WithAnnotations(annotations))
		gt.True(t, engine.Connect(context.Background()))
		gt.S(t, engine.FilteredSchema(context.Background(), "")).Contains(`vendedor -- Sales staff: nome text "Full name"`)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := schema.LoadAnnotations(filepath.Join(t.TempDir(), fmt.Sprintf("missing-%d.yaml", 1)))
		gt.Error(t, err)
	})
}
