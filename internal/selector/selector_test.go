package selector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ilia-khaustov/batchout-go/internal/data"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

func TestNewRequiresColumnsAndQuery(t *testing.T) {
	t.Parallel()

	_, err := New(registry.Fragment{"type": "sql", "query": "SELECT 1"})
	require.Error(t, err)

	_, err = New(registry.Fragment{"type": "sql", "columns": []any{"id"}})
	require.Error(t, err)
}

func TestNewRejectsIncompleteStatement(t *testing.T) {
	t.Parallel()

	_, err := New(registry.Fragment{
		"type":    "sql",
		"columns": []any{"id"},
		"query":   "SELECT * FROM cart WHERE name = 'unterminated",
	})
	require.Error(t, err)
}

func TestNewAcceptsCompleteStatement(t *testing.T) {
	t.Parallel()

	s, err := New(registry.Fragment{
		"type":    "sql",
		"columns": []any{"id", "name"},
		"query":   "SELECT id, name FROM cart",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, s.Columns())
}

func TestApplyTruncatesRowsToColumnCount(t *testing.T) {
	t.Parallel()

	store, err := data.New([]string{"id", "name", "extra"}, nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.WithRow("cart", []any{int64(1), "widget", "ignored"}))

	s, err := New(registry.Fragment{
		"type":    "sql",
		"columns": []any{"id", "name"},
		"query":   `SELECT "id", "name", "extra" FROM "cart"`,
	})
	require.NoError(t, err)

	rows, err := s.Apply(store)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, []any{int64(1), "widget"}, rows[0])
}

func TestApplyReturnsEmptyForEmptyTable(t *testing.T) {
	t.Parallel()

	store, err := data.New([]string{"id"}, nil)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.WithSources("cart"))

	s, err := New(registry.Fragment{
		"type":    "sql",
		"columns": []any{"id"},
		"query":   `SELECT "id" FROM "cart"`,
	})
	require.NoError(t, err)

	rows, err := s.Apply(store)
	require.NoError(t, err)
	require.Empty(t, rows)
}
