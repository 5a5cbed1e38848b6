package task

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

func TestNewReaderDefaultsThreadsToOne(t *testing.T) {
	t.Parallel()

	r, err := NewReader(registry.Fragment{"type": "reader", "inputs": []any{"orders"}})
	require.NoError(t, err)
	require.Equal(t, 1, r.Threads())
	require.Equal(t, TypeReader, r.Type())
	require.Equal(t, []string{"orders"}, r.Inputs())
	require.Equal(t, map[string]any{
		"selector": "",
		"inputs":   []string{"orders"},
		"threads":  1,
	}, r.Components())
}

func TestNewReaderRequiresInputs(t *testing.T) {
	t.Parallel()

	_, err := NewReader(registry.Fragment{"type": "reader"})
	require.Error(t, err)
}

func TestNewReaderClampsNonPositiveThreadsToOne(t *testing.T) {
	t.Parallel()

	r, err := NewReader(registry.Fragment{"type": "reader", "inputs": []any{"orders"}, "threads": 0})
	require.NoError(t, err)
	require.Equal(t, 1, r.Threads())
}

func TestNewWriterRequiresOutputsAndSelector(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(registry.Fragment{"type": "writer", "outputs": []any{"sink"}})
	require.Error(t, err)

	_, err = NewWriter(registry.Fragment{"type": "writer", "selector": "all"})
	require.Error(t, err)

	w, err := NewWriter(registry.Fragment{"type": "writer", "outputs": []any{"sink"}, "selector": "all"})
	require.NoError(t, err)
	require.Equal(t, TypeWriter, w.Type())
	require.Equal(t, "all", w.Selector())
	require.Equal(t, []string{"sink"}, w.Outputs())
	require.Equal(t, map[string]any{
		"selector": "all",
		"outputs":  []string{"sink"},
	}, w.Components())
}
