// Package sink implements the analytic table manager. It derives DDL from
// a topic's key/value column definitions, issues CREATE TABLE IF NOT
// EXISTS, and owns one prepared insert per topic whose arity is computed
// from the flattened column shape rather than assumed.
package sink

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/kcache/kawai/internal/column"
	"github.com/kcache/kawai/internal/kawaierr"
)

// Table owns the prepared insert for one topic's table. Construction issues
// the CREATE TABLE; the insert's arity is 1 (key) + len(valueCols), computed
// once here and never assumed elsewhere.
type Table struct {
	name    string
	arity   int
	mu      sync.Mutex
	prepped *sql.Stmt
}

// Engine wraps the embedded analytic database handle shared by every
// topic's Table. One Engine per process, owned exclusively by the facade;
// workers only ever touch the Table they were handed.
type Engine struct {
	db *sql.DB
}

// Open starts an in-process DuckDB database. path == "" opens an
// in-memory database.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, kawaierr.New(kawaierr.KindSink, "failed to open analytic engine", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, kawaierr.New(kawaierr.KindSink, "failed to reach analytic engine", err)
	}
	return &Engine{db: db}, nil
}

// Close releases the database handle. Failures are logged by the caller,
// not propagated, so they never block the rest of shutdown.
func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return kawaierr.New(kawaierr.KindSink, "failed to close analytic engine", err)
	}
	return nil
}

// EnsureTable creates the topic's table if it doesn't already exist and
// compiles its prepared insert. A non-struct key occupies a column named
// "key", so it never collides with a non-struct value's "value" column.
func (e *Engine) EnsureTable(topic string, keyColumn, valueColumn *column.Column) (*Table, error) {
	if err := validIdentifier(topic); err != nil {
		return nil, err
	}

	keyFields := column.FlattenTopLevel(keyColumn)
	if len(keyFields) != 1 {
		return nil, kawaierr.New(kawaierr.KindBadSchema, "key column must flatten to exactly one field", nil)
	}
	keyField := keyFields[0]
	if keyColumn.Kind() != column.KindStruct {
		keyField.Name = "key"
	}
	valueFields := column.FlattenTopLevel(valueColumn)

	ddl := renderCreateTable(topic, keyField, valueFields)
	if _, err := e.db.Exec(ddl); err != nil {
		return nil, kawaierr.New(kawaierr.KindSink, fmt.Sprintf("failed to create table %q", topic), err)
	}

	arity := 1 + len(valueFields)
	insertSQL := renderInsert(topic, arity)
	stmt, err := e.db.Prepare(insertSQL)
	if err != nil {
		return nil, kawaierr.New(kawaierr.KindSink, fmt.Sprintf("failed to prepare insert for %q", topic), err)
	}

	return &Table{name: topic, arity: arity, prepped: stmt}, nil
}

// Arity is 1 (key) + the number of flattened value columns.
func (t *Table) Arity() int { return t.arity }

// Insert executes the prepared insert for one row. row must have exactly
// Arity() elements; a mismatch is reported as a SinkError without executing
// anything.
func (t *Table) Insert(row []any) error {
	if len(row) != t.arity {
		return kawaierr.New(kawaierr.KindSink, fmt.Sprintf("row has %d values, table %q expects %d", len(row), t.name, t.arity), nil)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.prepped.Exec(row...); err != nil {
		return kawaierr.New(kawaierr.KindSink, fmt.Sprintf("insert into %q failed", t.name), err)
	}
	return nil
}

// Close releases the prepared statement.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.prepped.Close(); err != nil {
		return kawaierr.New(kawaierr.KindSink, fmt.Sprintf("failed to close prepared insert for %q", t.name), err)
	}
	return nil
}

func renderCreateTable(topic string, keyField column.Field, valueFields []column.Field) string {
	cols := make([]string, 0, 1+len(valueFields))
	cols = append(cols, quoteIdent(keyField.Name)+" "+keyField.Column.RenderDDL())
	for _, f := range valueFields {
		cols = append(cols, quoteIdent(f.Name)+" "+f.Column.RenderDDL())
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(topic), strings.Join(cols, ", "))
}

func renderInsert(topic string, arity int) string {
	placeholders := make([]string, arity)
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(topic), strings.Join(placeholders, ", "))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// validIdentifier restricts topic names to identifiers safe for the
// dialect, since they're used verbatim as table names.
func validIdentifier(name string) error {
	if name == "" {
		return kawaierr.New(kawaierr.KindConfig, "topic name must not be empty", nil)
	}
	for _, r := range name {
		isLetter := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !isDigit && r != '_' {
			return kawaierr.New(kawaierr.KindConfig, fmt.Sprintf("topic name %q is not a safe table identifier", name), nil)
		}
	}
	if name[0] >= '0' && name[0] <= '9' {
		return kawaierr.New(kawaierr.KindConfig, fmt.Sprintf("topic name %q must not start with a digit", name), nil)
	}
	return nil
}
