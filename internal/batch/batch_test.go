package batch

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/output"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

// recorder is a minimal test Output that keeps every Ingest call's rows.
type recorder struct {
	columns []string
	rows    [][]any
}

func (r *recorder) Ingest(columns []string, rows [][]any) (int, error) {
	r.columns = columns
	r.rows = append(r.rows, rows...)
	return len(rows), nil
}

func (r *recorder) Commit() error { return nil }

var _ output.Output = (*recorder)(nil)

func testLogger() *logging.Logger {
	return logging.New(logging.Options{Level: "error"})
}

func frag(values map[string]any) registry.Fragment { return registry.Fragment(values) }

// toAny adapts a []string into the []any shape BindStringSlice expects,
// matching what a YAML list decodes into.
func toAny(strs []string) []any {
	out := make([]any, len(strs))
	for i, s := range strs {
		out[i] = s
	}
	return out
}

// cartoonPayload builds one customer/order/cart/model payload the way the
// original fixture's scenario A does: cart and model each carry i+1
// position-indexed elements.
func cartoonPayload(i int) string {
	cart := "["
	model := "["
	for k := 0; k <= i; k++ {
		if k > 0 {
			cart += ","
			model += ","
		}
		cart += `{"id":"c` + itoa(i) + "-" + itoa(k) + `","price":` + itoa(k) + `.5,"name":"  Cart ` + itoa(k) + `  "}`
		model += `{"id":"m` + itoa(i) + "-" + itoa(k) + `","price":` + itoa(k) + `.25,"name":"  Model ` + itoa(k) + `  "}`
	}
	cart += "]"
	model += "]"
	return `{"customer":{"id":` + itoa(i) + `},"order":{"id":` + itoa(i+1) + `},"cart":` + cart + `,"model":` + model + `}`
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

// newScenarioABatch wires one const input of payloads through jsonpath/
// for_list/scalar/sql components producing a Cartesian product over two
// sibling list indexes, and returns the Batch plus the recorder Output its
// single writer task ingests into.
func newScenarioABatch(t *testing.T, payloads []string) (*Batch, *recorder) {
	t.Helper()

	b, err := New(testLogger())
	require.NoError(t, err)

	require.NoError(t, b.WithInputs(config.OrderedFragments{
		Names: []string{"dummy"},
		Fragments: map[string]registry.Fragment{
			"dummy": frag(map[string]any{"type": "const", "data": toAny(payloads)}),
		},
	}, nil))

	require.NoError(t, b.WithExtractors(config.OrderedFragments{
		Names: []string{"json"},
		Fragments: map[string]registry.Fragment{
			"json": frag(map[string]any{"type": "jsonpath"}),
		},
	}, nil))

	require.NoError(t, b.WithIndexes(config.OrderedFragments{
		Names: []string{"cart_idx", "model_idx"},
		Fragments: map[string]registry.Fragment{
			"cart_idx":  frag(map[string]any{"type": "for_list", "path": "$.cart", "extractor": "json"}),
			"model_idx": frag(map[string]any{"type": "for_list", "path": "$.model", "extractor": "json"}),
		},
	}, nil))

	require.NoError(t, b.WithColumns(config.OrderedFragments{
		Names: []string{
			"customer_id", "order_id",
			"cart_product_id", "cart_price", "cart_name",
			"model_product_id", "model_price", "model_name",
		},
		Fragments: map[string]registry.Fragment{
			"customer_id": frag(map[string]any{"type": "scalar", "path": "$.customer.id", "extractor": "json", "cast": "integer"}),
			"order_id":    frag(map[string]any{"type": "scalar", "path": "$.order.id", "extractor": "json", "cast": "integer"}),
			"cart_product_id": frag(map[string]any{
				"type": "scalar", "path": "$.cart[{cart_idx}].id", "extractor": "json", "cast": "string",
			}),
			"cart_price": frag(map[string]any{
				"type": "scalar", "path": "$.cart[{cart_idx}].price", "extractor": "json", "cast": "float",
			}),
			"cart_name": frag(map[string]any{
				"type": "scalar", "path": "$.cart[{cart_idx}].name", "extractor": "json", "cast": "string",
				"processors": []any{map[string]any{"type": "replace", "old": " ", "new": ""}},
			}),
			"model_product_id": frag(map[string]any{
				"type": "scalar", "path": "$.model[{model_idx}].id", "extractor": "json", "cast": "string",
			}),
			"model_price": frag(map[string]any{
				"type": "scalar", "path": "$.model[{model_idx}].price", "extractor": "json", "cast": "float",
			}),
			"model_name": frag(map[string]any{
				"type": "scalar", "path": "$.model[{model_idx}].name", "extractor": "json", "cast": "string",
				"processors": []any{map[string]any{"type": "replace", "old": " ", "new": ""}},
			}),
		},
	}, nil))

	require.NoError(t, b.WithOutputs(config.OrderedFragments{
		Names:     []string{"recorder"},
		Fragments: map[string]registry.Fragment{"recorder": frag(map[string]any{"type": "logger"})},
	}, nil))

	rec := &recorder{}
	b.outputs["recorder"] = rec

	require.NoError(t, b.WithSelectors(config.OrderedFragments{
		Names: []string{"all"},
		Fragments: map[string]registry.Fragment{
			"all": frag(map[string]any{
				"type": "sql",
				"columns": toAny([]string{
					"customer_id", "order_id",
					"cart_product_id", "cart_price", "cart_name",
					"model_product_id", "model_price", "model_name",
				}),
				"query": "select * from dummy",
			}),
		},
	}, nil))

	require.NoError(t, b.WithTasks(config.OrderedFragments{
		Names: []string{"read", "write"},
		Fragments: map[string]registry.Fragment{
			"read":  frag(map[string]any{"type": "reader", "inputs": []any{"dummy"}}),
			"write": frag(map[string]any{"type": "writer", "outputs": []any{"recorder"}, "selector": "all"}),
		},
	}, nil))

	require.NoError(t, b.WithMaps(map[string][]any{
		"dummy": {
			map[string]any{"cart_idx": []any{"cart_product_id", "cart_price", "cart_name"}},
			map[string]any{"model_idx": []any{"model_product_id", "model_price", "model_name"}},
			"customer_id", "order_id",
		},
	}))

	require.NoError(t, b.Validate())
	return b, rec
}

func TestRunOnceProducesCartesianProductAcrossSiblingIndexes(t *testing.T) {
	t.Parallel()

	payloads := []string{cartoonPayload(0), cartoonPayload(1), cartoonPayload(2)}
	b, rec := newScenarioABatch(t, payloads)

	require.NoError(t, b.RunOnce())

	// i=0: 1*1=1, i=1: 2*2=4, i=2: 3*3=9 -> 14 rows total.
	require.Len(t, rec.rows, 14)
	require.Equal(t, []string{
		"customer_id", "order_id",
		"cart_product_id", "cart_price", "cart_name",
		"model_product_id", "model_price", "model_name",
	}, rec.columns)

	for _, row := range rec.rows {
		require.Len(t, row, 8)
		for _, v := range row {
			require.NotNil(t, v)
		}
		// the replace processor strips every space from the name columns.
		require.NotContains(t, row[4].(string), " ")
		require.NotContains(t, row[7].(string), " ")
	}
}

func TestRunOnceElidesEmptyListIndexes(t *testing.T) {
	t.Parallel()

	payload := `{"customer":{"id":1},"order":{"id":2},"cart":[],"model":[]}`
	b, rec := newScenarioABatch(t, []string{payload})

	require.NoError(t, b.RunOnce())

	// an empty cart/model enumerates zero index values, so the branch emits
	// nothing for this payload.
	require.Empty(t, rec.rows)
}

func TestRunOnceNullifiesOnlyTheFailingCastOnASharedRow(t *testing.T) {
	t.Parallel()

	b, err := New(testLogger())
	require.NoError(t, err)

	require.NoError(t, b.WithInputs(config.OrderedFragments{
		Names: []string{"dummy"},
		Fragments: map[string]registry.Fragment{
			"dummy": frag(map[string]any{"type": "const", "data": []any{
				`{"id":"not-a-number","name":"ok"}`,
			}}),
		},
	}, nil))
	require.NoError(t, b.WithExtractors(config.OrderedFragments{
		Names:     []string{"json"},
		Fragments: map[string]registry.Fragment{"json": frag(map[string]any{"type": "jsonpath"})},
	}, nil))
	require.NoError(t, b.WithColumns(config.OrderedFragments{
		Names: []string{"bad_int", "good_string"},
		Fragments: map[string]registry.Fragment{
			"bad_int":     frag(map[string]any{"type": "scalar", "path": "$.id", "extractor": "json", "cast": "integer"}),
			"good_string": frag(map[string]any{"type": "scalar", "path": "$.name", "extractor": "json", "cast": "string"}),
		},
	}, nil))
	require.NoError(t, b.WithOutputs(config.OrderedFragments{
		Names:     []string{"recorder"},
		Fragments: map[string]registry.Fragment{"recorder": frag(map[string]any{"type": "logger"})},
	}, nil))
	rec := &recorder{}
	b.outputs["recorder"] = rec

	require.NoError(t, b.WithSelectors(config.OrderedFragments{
		Names: []string{"all"},
		Fragments: map[string]registry.Fragment{
			"all": frag(map[string]any{
				"type":    "sql",
				"columns": []any{"bad_int", "good_string"},
				"query":   "select * from dummy",
			}),
		},
	}, nil))
	require.NoError(t, b.WithTasks(config.OrderedFragments{
		Names: []string{"read", "write"},
		Fragments: map[string]registry.Fragment{
			"read":  frag(map[string]any{"type": "reader", "inputs": []any{"dummy"}}),
			"write": frag(map[string]any{"type": "writer", "outputs": []any{"recorder"}, "selector": "all"}),
		},
	}, nil))
	require.NoError(t, b.WithMaps(map[string][]any{"dummy": {"bad_int", "good_string"}}))
	require.NoError(t, b.Validate())

	require.NoError(t, b.RunOnce())

	require.Len(t, rec.rows, 1)
	require.Nil(t, rec.rows[0][0])
	require.Equal(t, "ok", rec.rows[0][1])
}

func TestRunOnceWriterKeepsAllNullRows(t *testing.T) {
	t.Parallel()

	b, err := New(testLogger())
	require.NoError(t, err)

	require.NoError(t, b.WithInputs(config.OrderedFragments{
		Names: []string{"dummy"},
		Fragments: map[string]registry.Fragment{
			"dummy": frag(map[string]any{"type": "const", "data": []any{
				`{"id":"not-a-number","name":"n/a","tag":"ok"}`,
			}}),
		},
	}, nil))
	require.NoError(t, b.WithExtractors(config.OrderedFragments{
		Names:     []string{"json"},
		Fragments: map[string]registry.Fragment{"json": frag(map[string]any{"type": "jsonpath"})},
	}, nil))
	// good_tag casts cleanly, so the row as a whole is not all-null and
	// survives storage; bad_int/bad_string hold non-numeric text that fails
	// their integer/float casts, so the writer selector below (which only
	// projects those two) sees an all-null row.
	require.NoError(t, b.WithColumns(config.OrderedFragments{
		Names: []string{"bad_int", "bad_string", "good_tag"},
		Fragments: map[string]registry.Fragment{
			"bad_int":    frag(map[string]any{"type": "scalar", "path": "$.id", "extractor": "json", "cast": "integer"}),
			"bad_string": frag(map[string]any{"type": "scalar", "path": "$.name", "extractor": "json", "cast": "float"}),
			"good_tag":   frag(map[string]any{"type": "scalar", "path": "$.tag", "extractor": "json", "cast": "string"}),
		},
	}, nil))
	require.NoError(t, b.WithOutputs(config.OrderedFragments{
		Names:     []string{"recorder"},
		Fragments: map[string]registry.Fragment{"recorder": frag(map[string]any{"type": "logger"})},
	}, nil))
	rec := &recorder{}
	b.outputs["recorder"] = rec

	require.NoError(t, b.WithSelectors(config.OrderedFragments{
		Names: []string{"all"},
		Fragments: map[string]registry.Fragment{
			"all": frag(map[string]any{
				"type":    "sql",
				"columns": []any{"bad_int", "bad_string"},
				"query":   "select bad_int, bad_string from dummy",
			}),
		},
	}, nil))
	require.NoError(t, b.WithTasks(config.OrderedFragments{
		Names: []string{"read", "write"},
		Fragments: map[string]registry.Fragment{
			"read":  frag(map[string]any{"type": "reader", "inputs": []any{"dummy"}}),
			"write": frag(map[string]any{"type": "writer", "outputs": []any{"recorder"}, "selector": "all"}),
		},
	}, nil))
	require.NoError(t, b.WithMaps(map[string][]any{"dummy": {"bad_int", "bad_string", "good_tag"}}))
	require.NoError(t, b.Validate())

	require.NoError(t, b.RunOnce())

	// the row is stored (good_tag keeps it from being all-null), but the
	// writer's selector only projects bad_int/bad_string, both null on this
	// row. A write selection is not filtered by nonNullRows (unlike a
	// reader's pagination selection) and must still reach Ingest.
	require.Len(t, rec.rows, 1)
	require.Nil(t, rec.rows[0][0])
	require.Nil(t, rec.rows[0][1])
}

func TestRunOncePaginatesReaderFromPriorSelection(t *testing.T) {
	t.Parallel()

	b, err := New(testLogger())
	require.NoError(t, err)

	require.NoError(t, b.WithInputs(config.OrderedFragments{
		Names: []string{"seed", "paged"},
		Fragments: map[string]registry.Fragment{
			"seed":  frag(map[string]any{"type": "const", "data": []any{`{"id":1}`, `{"id":2}`}}),
			"paged": frag(map[string]any{"type": "const", "data": []any{`{"tag":"x"}`}}),
		},
	}, nil))
	require.NoError(t, b.WithExtractors(config.OrderedFragments{
		Names:     []string{"json"},
		Fragments: map[string]registry.Fragment{"json": frag(map[string]any{"type": "jsonpath"})},
	}, nil))
	require.NoError(t, b.WithColumns(config.OrderedFragments{
		Names: []string{"id", "tag"},
		Fragments: map[string]registry.Fragment{
			"id":  frag(map[string]any{"type": "scalar", "path": "$.id", "extractor": "json", "cast": "integer"}),
			"tag": frag(map[string]any{"type": "scalar", "path": "$.tag", "extractor": "json", "cast": "string"}),
		},
	}, nil))
	require.NoError(t, b.WithOutputs(config.OrderedFragments{
		Names:     []string{"recorder"},
		Fragments: map[string]registry.Fragment{"recorder": frag(map[string]any{"type": "logger"})},
	}, nil))
	rec := &recorder{}
	b.outputs["recorder"] = rec

	require.NoError(t, b.WithSelectors(config.OrderedFragments{
		Names: []string{"ids", "all"},
		Fragments: map[string]registry.Fragment{
			"ids": frag(map[string]any{"type": "sql", "columns": []any{"id"}, "query": "select id from seed where id is not null"}),
			"all": frag(map[string]any{"type": "sql", "columns": []any{"id", "tag"}, "query": "select * from paged"}),
		},
	}, nil))
	require.NoError(t, b.WithTasks(config.OrderedFragments{
		Names: []string{"seed_read", "paged_read", "write"},
		Fragments: map[string]registry.Fragment{
			"seed_read":  frag(map[string]any{"type": "reader", "inputs": []any{"seed"}}),
			"paged_read": frag(map[string]any{"type": "reader", "inputs": []any{"paged"}, "selector": "ids", "threads": 2}),
			"write":      frag(map[string]any{"type": "writer", "outputs": []any{"recorder"}, "selector": "all"}),
		},
	}, nil))
	require.NoError(t, b.WithMaps(map[string][]any{
		"seed":  {"id"},
		"paged": {"id", "tag"},
	}))
	require.NoError(t, b.Validate())

	// first run: nothing has been selected into "ids" yet, so paged_read's
	// parameter tuple list is empty and it fetches nothing; seed_read
	// populates the seed source the second run will paginate from.
	require.NoError(t, b.RunOnce())
	require.Empty(t, rec.rows)

	// second run: paged_read now pages once per id selected from the first
	// run's seed rows.
	require.NoError(t, b.RunOnce())
	require.Len(t, rec.rows, 2)

	var tags []string
	for _, row := range rec.rows {
		tags = append(tags, row[1].(string))
	}
	sort.Strings(tags)
	require.Equal(t, []string{"x", "x"}, tags)
}

func TestWithColumnsAfterFirstRunReturnsChangedAfterFirstRunError(t *testing.T) {
	t.Parallel()

	b, rec := newScenarioABatch(t, []string{cartoonPayload(0)})
	_ = rec

	require.NoError(t, b.RunOnce())

	err := b.WithColumns(config.OrderedFragments{
		Names:     []string{"extra"},
		Fragments: map[string]registry.Fragment{"extra": frag(map[string]any{"type": "scalar", "path": "$.x", "extractor": "json", "cast": "string"})},
	}, nil)
	require.Error(t, err)
	var changed *berrors.ChangedAfterFirstRunError
	require.ErrorAs(t, err, &changed)
}

func TestValidateRejectsUndefinedSelectorReference(t *testing.T) {
	t.Parallel()

	b, err := New(testLogger())
	require.NoError(t, err)

	require.NoError(t, b.WithInputs(config.OrderedFragments{
		Names:     []string{"dummy"},
		Fragments: map[string]registry.Fragment{"dummy": frag(map[string]any{"type": "const", "data": []any{}})},
	}, nil))
	require.NoError(t, b.WithTasks(config.OrderedFragments{
		Names:     []string{"read"},
		Fragments: map[string]registry.Fragment{"read": frag(map[string]any{"type": "reader", "inputs": []any{"dummy"}, "selector": "missing"})},
	}, nil))

	err = b.Validate()
	require.Error(t, err)
	var undefined *berrors.UndefinedReferenceError
	require.ErrorAs(t, err, &undefined)
}

func TestRunForeverHonorsMaxRunsZero(t *testing.T) {
	t.Parallel()

	b, rec := newScenarioABatch(t, []string{cartoonPayload(0)})

	err := b.RunForever(context.Background(), 0, time.Millisecond, time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, rec.rows)
}

func TestRunForeverStopsAfterMaxRuns(t *testing.T) {
	t.Parallel()

	b, rec := newScenarioABatch(t, []string{cartoonPayload(0)})

	err := b.RunForever(context.Background(), 2, time.Millisecond, time.Millisecond)
	require.NoError(t, err)
	// each run re-reads the same const input (Reset between runs), so two
	// runs double the single payload's one row.
	require.Len(t, rec.rows, 2)
}
