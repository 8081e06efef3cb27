package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

const (
	pgTablesQuery = `
SELECT t.table_schema, t.table_name, COALESCE(obj_description(c.oid, 'pg_class'), '')
FROM information_schema.tables t
JOIN pg_catalog.pg_namespace n ON n.nspname = t.table_schema
JOIN pg_catalog.pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
WHERE t.table_type IN ('BASE TABLE', 'VIEW')
  AND t.table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY t.table_schema, t.table_name`

	pgColumnsQuery = `
SELECT c.table_schema, c.table_name, c.column_name, c.data_type,
       c.is_nullable = 'YES', COALESCE(c.column_default, ''),
       COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '')
FROM information_schema.columns c
WHERE c.table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

	pgPrimaryKeysQuery = `
SELECT kcu.table_schema, kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY'`

	pgForeignKeysQuery = `
SELECT kcu.table_schema, kcu.table_name, kcu.column_name,
       ccu.table_schema, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
ORDER BY kcu.table_schema, kcu.table_name, kcu.column_name`
)

// Postgres introspects a PostgreSQL catalog
type Postgres struct {
	mu      sync.Mutex
	conn    *pgx.Conn
	timeout time.Duration
}

type PostgresOption func(*Postgres)

// WithStatementTimeout sets the statement timeout applied to catalog reads
func WithStatementTimeout(d time.Duration) PostgresOption {
	return func(p *Postgres) {
		p.timeout = d
	}
}

// NewPostgres connects to dsn and verifies the connection
func NewPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*Postgres, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(connectCtx, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect postgres")
	}
	if err := conn.Ping(connectCtx); err != nil {
		conn.Close(ctx)
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}

	p := &Postgres{
		conn:    conn,
		timeout: DefaultIntrospectTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Introspect reads tables, columns, primary keys and foreign keys in one
// read-only transaction with an elevated statement timeout
func (p *Postgres) Introspect(ctx context.Context) (*model.SchemaInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", p.timeout.Milliseconds())); err != nil {
		return nil, goerr.Wrap(err, "failed to set statement timeout")
	}

	b := newSchemaBuilder()

	if err := pgEach(ctx, tx, pgTablesQuery, func(rows pgx.Rows) error {
		var schema, name, desc string
		if err := rows.Scan(&schema, &name, &desc); err != nil {
			return err
		}
		b.addTable(schema, name, desc)
		return nil
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to read tables")
	}

	if err := pgEach(ctx, tx, pgColumnsQuery, func(rows pgx.Rows) error {
		var schema, table string
		col := &model.ColumnInfo{}
		if err := rows.Scan(&schema, &table, &col.Name, &col.DataType, &col.IsNullable, &col.DefaultExpr, &col.Description); err != nil {
			return err
		}
		b.addColumn(schema, table, col)
		return nil
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to read columns")
	}

	if err := pgEach(ctx, tx, pgPrimaryKeysQuery, func(rows pgx.Rows) error {
		var schema, table, column string
		if err := rows.Scan(&schema, &table, &column); err != nil {
			return err
		}
		b.markPrimaryKey(schema, table, column)
		return nil
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to read primary keys")
	}

	if err := pgEach(ctx, tx, pgForeignKeysQuery, func(rows pgx.Rows) error {
		fk := &model.ForeignKey{}
		if err := rows.Scan(&fk.Schema, &fk.Table, &fk.Column, &fk.RefSchema, &fk.RefTable, &fk.RefColumn); err != nil {
			return err
		}
		b.addForeignKey(fk)
		return nil
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to read foreign keys")
	}

	return b.build(), nil
}

func pgEach(ctx context.Context, tx pgx.Tx, query string, fn func(pgx.Rows) error) error {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close(context.Background())
}
