package adapter

import (
	"context"
	"database/sql"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite introspects a SQLite database file
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at path in read-only mode
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to ping sqlite", goerr.V("path", path))
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Introspect(ctx context.Context) (*model.SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultIntrospectTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tables")
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, goerr.Wrap(err, "failed to scan table name")
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to list tables")
	}

	b := newSchemaBuilder()
	for _, name := range names {
		b.addTable("main", name, "")
		if err := s.readColumns(ctx, b, name); err != nil {
			return nil, err
		}
		if err := s.readForeignKeys(ctx, b, name); err != nil {
			return nil, err
		}
	}

	return b.build(), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLite) readColumns(ctx context.Context, b *schemaBuilder, table string) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return goerr.Wrap(err, "failed to read columns", goerr.V("table", table))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull bool
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return goerr.Wrap(err, "failed to scan column", goerr.V("table", table))
		}
		b.addColumn("main", table, &model.ColumnInfo{
			Name:         name,
			DataType:     strings.ToLower(typ),
			IsNullable:   !notNull && pk == 0,
			DefaultExpr:  dflt.String,
			IsPrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return goerr.Wrap(err, "failed to read columns", goerr.V("table", table))
	}
	return nil
}

func (s *SQLite) readForeignKeys(ctx context.Context, b *schemaBuilder, table string) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteIdent(table)+")")
	if err != nil {
		return goerr.Wrap(err, "failed to read foreign keys", goerr.V("table", table))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return goerr.Wrap(err, "failed to scan foreign key", goerr.V("table", table))
		}
		b.addForeignKey(&model.ForeignKey{
			Schema:    "main",
			Table:     table,
			Column:    from,
			RefSchema: "main",
			RefTable:  refTable,
			RefColumn: to.String,
		})
	}
	if err := rows.Err(); err != nil {
		return goerr.Wrap(err, "failed to read foreign keys", goerr.V("table", table))
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
