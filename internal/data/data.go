// Package data implements a scratch store: a relational store, one table
// per input source, backed by an embedded SQL engine. Grounded on
// original_source/batchout/core/data.py's sqlite3-backed table set,
// re-pointed at modernc.org/sqlite, a pure-Go embedded engine.
package data

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ilia-khaustov/batchout-go/internal/column"
)

// Store is one run's scratch space: a named table per source, all sharing
// the Batch's full column schema.
type Store struct {
	db      *sql.DB
	columns []string
	types   map[string]column.Cast

	mu          sync.Mutex
	sourceOrder []string
	sources     map[string]bool
	perSource   map[string]int
	total       int
}

// New opens an in-memory store with the given column schema. types maps a
// column name to its declared cast, consulted only for datetime/boolean
// storage and read-back restoration; a column absent from types is treated
// as "native" (string/number as-is).
func New(columns []string, types map[string]column.Cast) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening scratch store: %w", err)
	}
	return &Store{
		db:        db,
		columns:   append([]string{}, columns...),
		types:     types,
		sources:   make(map[string]bool),
		perSource: make(map[string]int),
	}, nil
}

// Columns returns the store's schema, the Batch's full column list.
func (s *Store) Columns() []string { return append([]string{}, s.columns...) }

// Sources returns the source names currently materialized, in creation
// order.
func (s *Store) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.sourceOrder...)
}

// WithSources creates an empty table per name, idempotently.
func (s *Store) WithSources(names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if err := s.withSourceLocked(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) withSourceLocked(name string) error {
	if s.sources[name] {
		return nil
	}
	cols := make([]string, len(s.columns))
	for i, c := range s.columns {
		cols[i] = quoteIdent(c)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s(%s)", quoteIdent(name), strings.Join(cols, ","))
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("creating source table %q: %w", name, err)
	}
	s.sources[name] = true
	s.sourceOrder = append(s.sourceOrder, name)
	s.perSource[name] = 0
	return nil
}

// WithRow appends one row to source, creating it first if necessary. row is
// truncated or nil-padded to the schema width.
func (s *Store) WithRow(source string, row []any) error {
	s.mu.Lock()
	if err := s.withSourceLocked(source); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	fitted := make([]any, len(s.columns))
	for i := range fitted {
		if i < len(row) {
			fitted[i] = s.forStorage(s.columns[i], row[i])
		}
	}

	placeholders := strings.Repeat("?,", len(s.columns))
	placeholders = strings.TrimSuffix(placeholders, ",")
	cols := make([]string, len(s.columns))
	for i, c := range s.columns {
		cols[i] = quoteIdent(c)
	}
	query := fmt.Sprintf("INSERT INTO %s(%s) VALUES (%s)", quoteIdent(source), strings.Join(cols, ","), placeholders)

	if _, err := s.db.Exec(query, fitted...); err != nil {
		return fmt.Errorf("inserting row into %q: %w", source, err)
	}

	s.mu.Lock()
	s.perSource[source]++
	s.total++
	s.mu.Unlock()
	return nil
}

// forStorage encodes a typed value the way the declared cast is stored:
// datetimes as ISO-8601 text, booleans as integers, everything else passed
// through natively.
func (s *Store) forStorage(col string, v any) any {
	switch s.types[col] {
	case column.CastDatetime:
		if t, ok := v.(time.Time); ok {
			return t.Format(time.RFC3339)
		}
	case column.CastBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	}
	return v
}

// forRestore decodes a stored value back into its declared cast's runtime
// shape.
func (s *Store) forRestore(col string, v any) any {
	switch s.types[col] {
	case column.CastDatetime:
		if str, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339, str); err == nil {
				return t
			}
		}
	case column.CastBoolean:
		switch n := v.(type) {
		case int64:
			return n != 0
		case float64:
			return n != 0
		}
	}
	return v
}

// Rows reads every row of source back, with type restoration applied. It
// returns nil (not an error) for a source that was never created.
func (s *Store) Rows(source string) ([][]any, error) {
	s.mu.Lock()
	known := s.sources[source]
	s.mu.Unlock()
	if !known {
		return nil, nil
	}

	cols := make([]string, len(s.columns))
	for i, c := range s.columns {
		cols[i] = quoteIdent(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ","), quoteIdent(source))
	result, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("reading source %q: %w", source, err)
	}
	defer result.Close()

	var rows [][]any
	for result.Next() {
		raw := make([]any, len(s.columns))
		ptrs := make([]any, len(s.columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := result.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row from %q: %w", source, err)
		}
		restored := make([]any, len(s.columns))
		for i, c := range s.columns {
			restored[i] = s.forRestore(c, raw[i])
		}
		rows = append(rows, restored)
	}
	return rows, result.Err()
}

// Count reports the row count of each named source.
func (s *Store) Count(sources ...string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(sources))
	for _, src := range sources {
		out[src] = s.perSource[src]
	}
	return out
}

// Total reports the row count across all sources.
func (s *Store) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// DB exposes the underlying query handle to Selectors, equivalent to a
// `cursor` accessor.
func (s *Store) DB() *sql.DB { return s.db }

// Reset closes and recreates the store, clearing all sources and counters.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing scratch store: %w", err)
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return fmt.Errorf("reopening scratch store: %w", err)
	}
	s.db = db
	s.sources = make(map[string]bool)
	s.sourceOrder = nil
	s.perSource = make(map[string]int)
	s.total = 0
	return nil
}

// Clone produces a structural copy: a fresh store with the same schema and
// every row of every source re-inserted.
func (s *Store) Clone() (*Store, error) {
	clone, err := New(s.columns, s.types)
	if err != nil {
		return nil, err
	}
	for _, source := range s.Sources() {
		rows, err := s.Rows(source)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if err := clone.WithRow(source, row); err != nil {
				return nil, err
			}
		}
	}
	return clone, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// quoteIdent double-quotes a SQL identifier, doubling any embedded quote, so
// source/column names that are SQL keywords or contain odd characters stay
// safe to interpolate.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
