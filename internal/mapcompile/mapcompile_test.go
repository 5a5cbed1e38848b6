package mapcompile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileSingleIndexWithOneColumn(t *testing.T) {
	t.Parallel()

	elements := []any{
		map[string]any{"cart_idx": []any{"cart_id"}},
	}

	branches := Compile(elements)
	require.Len(t, branches, 1)
	require.Equal(t, Branch{
		{Path: "cart_idx", Deps: []string{}},
		{Path: "cart_id", Deps: []string{"cart_idx"}},
	}, branches[0])
}

func TestCompileSiblingIndexesProduceCartesianProduct(t *testing.T) {
	t.Parallel()

	elements := []any{
		map[string]any{"cart_idx": []any{"cart_id"}},
		map[string]any{"model_idx": []any{"model_id"}},
	}

	branches := Compile(elements)
	require.Len(t, branches, 1)
	require.Len(t, branches[0], 4)

	var paths []string
	for _, e := range branches[0] {
		paths = append(paths, e.Path)
	}
	require.ElementsMatch(t, []string{"cart_idx", "cart_id", "model_idx", "model_id"}, paths)
}

func TestCompileNestedIndexesChainDeps(t *testing.T) {
	t.Parallel()

	elements := []any{
		map[string]any{
			"cart_idx": []any{
				map[string]any{"item_idx": []any{"item_id"}},
			},
		},
	}

	branches := Compile(elements)
	require.Len(t, branches, 1)

	byPath := make(map[string]Entry)
	for _, e := range branches[0] {
		byPath[e.Path] = e
	}
	require.Equal(t, []string{}, byPath["cart_idx"].Deps)
	require.Equal(t, []string{"cart_idx"}, byPath["item_idx"].Deps)
	require.Equal(t, []string{"cart_idx", "item_idx"}, byPath["item_id"].Deps)
}

func TestCompileIndexPrecedesItsDependentsInOrder(t *testing.T) {
	t.Parallel()

	elements := []any{
		map[string]any{"cart_idx": []any{"cart_id", "cart_price"}},
	}

	branches := Compile(elements)
	require.Len(t, branches, 1)
	require.Equal(t, "cart_idx", branches[0][0].Path)
}

func TestCompileFlatColumnsWithNoIndex(t *testing.T) {
	t.Parallel()

	elements := []any{"id", "name"}

	branches := Compile(elements)
	require.Len(t, branches, 1)
	require.Equal(t, Branch{
		{Path: "id", Deps: []string{}},
		{Path: "name", Deps: []string{}},
	}, branches[0])
}

func TestCompileEmptyElementsYieldsOneEmptyBranch(t *testing.T) {
	t.Parallel()

	branches := Compile(nil)
	require.Len(t, branches, 1)
	require.Empty(t, branches[0])
}
