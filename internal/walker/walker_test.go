package walker

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ilia-khaustov/batchout-go/internal/extractor"
	"github.com/ilia-khaustov/batchout-go/internal/index"
	"github.com/ilia-khaustov/batchout-go/internal/mapcompile"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

func newIndexes(t *testing.T, defs map[string]registry.Fragment) MapIndexes {
	t.Helper()
	jp, err := extractor.NewJSONPath(registry.Fragment{}, nil)
	require.NoError(t, err)

	idx := make(map[string]index.Index, len(defs))
	for name, fragment := range defs {
		var built index.Index
		switch fragment.Type() {
		case "for_list":
			built, err = index.NewForList(fragment)
		case "for_object":
			built, err = index.NewForObject(fragment)
		case "from_list":
			built, err = index.NewFromList(fragment)
		}
		require.NoError(t, err)
		idx[name] = built
	}
	return MapIndexes{Index: idx, Extractors: map[string]extractor.Extractor{"jsonpath": jp}}
}

func cartIdxValues(emissions []Emission) []int {
	var out []int
	for _, e := range emissions {
		out = append(out, e.Bindings["cart_idx"].(int))
	}
	sort.Ints(out)
	return out
}

func TestWalkSingleIndexProducesOneEmissionPerValue(t *testing.T) {
	t.Parallel()

	idx := newIndexes(t, map[string]registry.Fragment{
		"cart_idx": {"type": "for_list", "path": "cart", "extractor": "jsonpath"},
	})
	branch := mapcompile.Branch{
		{Path: "cart_idx", Deps: []string{}},
		{Path: "cart_id", Deps: []string{"cart_idx"}},
	}

	payload := []byte(`{"cart": [{"id":1},{"id":2},{"id":3}]}`)
	emissions := Walk(branch, idx, payload)

	require.Len(t, emissions, 3)
	require.Equal(t, []int{0, 1, 2}, cartIdxValues(emissions))
	for _, e := range emissions {
		require.Equal(t, []string{"cart_id"}, e.Columns)
	}
}

func TestWalkEmptyBranchElisionForEmptyList(t *testing.T) {
	t.Parallel()

	idx := newIndexes(t, map[string]registry.Fragment{
		"cart_idx": {"type": "for_list", "path": "cart", "extractor": "jsonpath"},
	})
	branch := mapcompile.Branch{
		{Path: "cart_idx", Deps: []string{}},
		{Path: "cart_id", Deps: []string{"cart_idx"}},
	}

	payload := []byte(`{"cart": []}`)
	emissions := Walk(branch, idx, payload)
	require.Empty(t, emissions)
}

func TestWalkNestedIndexesMultiplyBindings(t *testing.T) {
	t.Parallel()

	idx := newIndexes(t, map[string]registry.Fragment{
		"cart_idx": {"type": "for_list", "path": "cart", "extractor": "jsonpath"},
		"item_idx": {"type": "for_list", "path": "cart[{cart_idx}].items", "extractor": "jsonpath"},
	})
	branch := mapcompile.Branch{
		{Path: "cart_idx", Deps: []string{}},
		{Path: "item_idx", Deps: []string{"cart_idx"}},
		{Path: "item_id", Deps: []string{"cart_idx", "item_idx"}},
	}

	payload := []byte(`{"cart": [{"items": [1,2]}, {"items": [1,2,3]}]}`)
	emissions := Walk(branch, idx, payload)

	require.Len(t, emissions, 5) // 2 items under cart 0, 3 under cart 1
	for _, e := range emissions {
		_, hasCart := e.Bindings["cart_idx"]
		_, hasItem := e.Bindings["item_idx"]
		require.True(t, hasCart)
		require.True(t, hasItem)
	}
}

func TestWalkSiblingIndexesCartesianProduct(t *testing.T) {
	t.Parallel()

	idx := newIndexes(t, map[string]registry.Fragment{
		"cart_idx":  {"type": "for_list", "path": "cart", "extractor": "jsonpath"},
		"model_idx": {"type": "for_list", "path": "model", "extractor": "jsonpath"},
	})
	branch := mapcompile.Branch{
		{Path: "cart_idx", Deps: []string{}},
		{Path: "cart_id", Deps: []string{"cart_idx"}},
		{Path: "model_idx", Deps: []string{}},
		{Path: "model_id", Deps: []string{"model_idx"}},
	}

	payload := []byte(`{"cart": [{}, {}], "model": [{}, {}, {}]}`)
	emissions := Walk(branch, idx, payload)

	require.Len(t, emissions, 6) // 2 * 3
}

func TestWalkNoIndexesEmitsOnceWithEmptyBinding(t *testing.T) {
	t.Parallel()

	idx := MapIndexes{Index: map[string]index.Index{}, Extractors: map[string]extractor.Extractor{}}
	branch := mapcompile.Branch{
		{Path: "id", Deps: []string{}},
		{Path: "name", Deps: []string{}},
	}

	emissions := Walk(branch, idx, []byte(`{}`))
	require.Len(t, emissions, 1)
	require.Empty(t, emissions[0].Bindings)
	require.ElementsMatch(t, []string{"id", "name"}, emissions[0].Columns)
}
