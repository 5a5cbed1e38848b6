// Package selector implements a named column projection plus a SQL query
// run against the scratch store. Grounded on
// original_source/batchout/std/selectors/sql.py, which validates its query
// with sqlite3.complete_statement at construction and later executes it
// through data.cursor.
package selector

import (
	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/data"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

// SQL is the `sql` Selector kind.
type SQL struct {
	columns []string
	query   string
}

// New constructs a SQL selector from a resolved fragment. The query must be
// a lexically complete SQL statement; this is checked here, at construction,
// not deferred to Apply.
func New(fragment registry.Fragment) (*SQL, error) {
	columns, err := config.BindStringSlice("selector.sql", fragment, config.Option{Key: "columns", Required: true})
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, berrors.NewConfigInvalid("selector.sql", "columns", "at least one column is required", nil)
	}

	query, err := config.BindString("selector.sql", fragment, config.Option{Key: "query", Required: true})
	if err != nil {
		return nil, err
	}
	if !completeStatement(query) {
		return nil, berrors.NewConfigInvalid("selector.sql", "query", "a complete SQL statement is required", nil)
	}

	return &SQL{columns: columns, query: query}, nil
}

// Columns returns the selector's projected column names.
func (s *SQL) Columns() []string { return append([]string{}, s.columns...) }

// Apply executes the query against store and yields each row truncated to
// len(columns).
func (s *SQL) Apply(store *data.Store) ([][]any, error) {
	rows, err := store.DB().Query(s.query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		if len(raw) > len(s.columns) {
			raw = raw[:len(s.columns)]
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

// completeStatement is a lexical check of query: it returns false for an
// empty query, an unclosed single- or double-quoted string, or an unclosed
// block comment, and true otherwise. It does not parse SQL: a trailing
// semicolon is not required, a trailing "--" comment is accepted, and a
// syntactically unfinished statement such as `SELECT * FROM` passes.
func completeStatement(query string) bool {
	trimmed := trimRight(query)
	if trimmed == "" {
		return false
	}

	runes := []rune(trimmed)
	var inSingle, inDouble, inLineComment, inBlockComment bool
	lastSignificant := rune(0)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inLineComment:
			if r == '\n' {
				inLineComment = false
			}
			continue
		case inBlockComment:
			if r == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				inBlockComment = false
				i++
			}
			continue
		case inSingle:
			if r == '\'' {
				inSingle = false
			}
			continue
		case inDouble:
			if r == '"' {
				inDouble = false
			}
			continue
		}

		switch r {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case '-':
			if i+1 < len(runes) && runes[i+1] == '-' {
				inLineComment = true
				i++
				continue
			}
		case '/':
			if i+1 < len(runes) && runes[i+1] == '*' {
				inBlockComment = true
				i++
				continue
			}
		}
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			lastSignificant = r
		}
	}

	if inSingle || inDouble || inBlockComment {
		return false
	}
	return lastSignificant != 0
}

func trimRight(s string) string {
	end := len(s)
	for end > 0 {
		r := s[end-1]
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			end--
			continue
		}
		break
	}
	return s[:end]
}
