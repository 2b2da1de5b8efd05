// Package engine is the boundary to the embedded analytical query engine
// (DuckDB). The rest of the system consumes only the minimal capability set:
// registering named in-memory relations, executing query text, and
// materialising query results as named temporary relations.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"addrmatch/internal/domain"
)

// Session is the capability set consumed by pipelines and matching stages.
// Implemented by *DB; tests substitute scripted fakes.
type Session interface {
	// Query executes arbitrary query text and returns all rows.
	Query(ctx context.Context, query string) (*Result, error)
	// Exec executes query text, discarding any result.
	Exec(ctx context.Context, query string) error
	// CreateTempTableAs materialises a query result as a named temporary
	// relation, replacing any previous relation of that name.
	CreateTempTableAs(ctx context.Context, name, query string) error
	// RegisterRows registers an in-memory relation under the given name.
	RegisterRows(ctx context.Context, name string, cols []Column, rows [][]any) error
}

// Column describes one column of a relation.
type Column struct {
	Name string
	Type string
}

// DB wraps a DuckDB database with a single pinned connection. Temporary
// relations are connection-scoped in DuckDB, so every pipeline in one pass
// must run on the same connection; the pinned connection is that shared,
// single-owner resource. Dropping temporary relations is the responsibility
// of Close, not of individual pipelines.
type DB struct {
	db   *sql.DB
	conn *sql.Conn
	log  *slog.Logger
}

// Open opens a DuckDB database (empty dsn for in-memory) and pins one
// connection for the lifetime of the DB.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*DB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pin connection: %w", err)
	}
	return &DB{db: db, conn: conn, log: log}, nil
}

// Close releases the pinned connection and the database. All temporary
// relations created during the session are dropped with it.
func (d *DB) Close() error {
	if err := d.conn.Close(); err != nil {
		d.db.Close()
		return err
	}
	return d.db.Close()
}

// Query executes query text on the pinned connection and drains every row.
func (d *DB) Query(ctx context.Context, query string) (*Result, error) {
	rows, err := d.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.ErrEngine(query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, domain.ErrEngine(query, err)
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, domain.ErrEngine(query, err)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrEngine(query, err)
	}
	return res, nil
}

// Exec executes query text, discarding any result.
func (d *DB) Exec(ctx context.Context, query string) error {
	if _, err := d.conn.ExecContext(ctx, query); err != nil {
		return domain.ErrEngine(query, err)
	}
	return nil
}

// CreateTempTableAs materialises a query as a named temporary relation.
func (d *DB) CreateTempTableAs(ctx context.Context, name, query string) error {
	stmt := fmt.Sprintf("CREATE OR REPLACE TEMP TABLE %s AS %s", name, query)
	if d.log != nil {
		d.log.Debug("materialising relation", "name", name)
	}
	return d.Exec(ctx, stmt)
}

// RegisterRows registers an in-memory relation as a temporary table. Rows are
// inserted in batches of literal VALUES tuples; an empty rows slice yields an
// empty typed relation.
func (d *DB) RegisterRows(ctx context.Context, name string, cols []Column, rows [][]any) error {
	if len(cols) == 0 {
		return domain.ErrConfiguration("cannot register relation %q with no columns", name)
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := c.Type
		if typ == "" {
			typ = "VARCHAR"
		}
		defs[i] = c.Name + " " + typ
	}
	if err := d.Exec(ctx, fmt.Sprintf("CREATE OR REPLACE TEMP TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return err
	}

	const batch = 500
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		var sb strings.Builder
		fmt.Fprintf(&sb, "INSERT INTO %s VALUES ", name)
		for i, row := range rows[start:end] {
			if len(row) != len(cols) {
				return domain.ErrConfiguration(
					"relation %q: row %d has %d values, want %d", name, start+i, len(row), len(cols))
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(")
			for j, v := range row {
				if j > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(sqlLiteral(v))
			}
			sb.WriteString(")")
		}
		if err := d.Exec(ctx, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// sqlLiteral renders a Go value as a SQL literal.
func sqlLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", x)
	}
}
