// Package walker implements a map-driven payload walker: for one payload
// and one compiled Map branch, it produces the stream of (column-subset,
// index-binding) tuples that become candidate rows. Grounded on
// original_source/batchout/core/util.py's Map.__iter__ / Batch.run_once
// (the product-over-indexes loop), generalized from a flat single-level
// product into a nested context tree, so sibling indexes and indexes
// nested under other indexes both enumerate correctly within one branch.
package walker

import (
	"github.com/ilia-khaustov/batchout-go/internal/extractor"
	"github.com/ilia-khaustov/batchout-go/internal/index"
	"github.com/ilia-khaustov/batchout-go/internal/mapcompile"
)

// Emission is one (column_tuple, index_binding) pair the walker produces.
type Emission struct {
	Columns  []string
	Bindings index.Bindings
}

// Indexes resolves an index name to its Index definition and the Extractor
// it draws values through.
type Indexes interface {
	Lookup(name string) (idx index.Index, ext extractor.Extractor, ok bool)
}

// MapIndexes is the trivial Indexes implementation: two parallel maps keyed
// by index name.
type MapIndexes struct {
	Index      map[string]index.Index
	Extractors map[string]extractor.Extractor
}

// Lookup implements Indexes.
func (m MapIndexes) Lookup(name string) (index.Index, extractor.Extractor, bool) {
	idx, ok := m.Index[name]
	if !ok {
		return nil, nil, false
	}
	ext, ok := m.Extractors[idx.ExtractorRef()]
	if !ok {
		return nil, nil, false
	}
	return idx, ext, true
}

// cnode is one level of the nested context `C`: an ordered set of index
// names bound at this level, each carrying its enumerated values and, per
// value, the nested cnode of indexes that depend on it.
type cnode struct {
	order  []string
	byName map[string]*indexNode
}

// indexNode holds one index's enumerated values and the subtree each value
// roots.
type indexNode struct {
	order   []any
	byValue map[any]*cnode
}

func newCnode() *cnode { return &cnode{byName: make(map[string]*indexNode)} }

// attachAt records definition's enumerated values as a new index name at
// cursor, creating one child cnode per value for further nesting.
func attachAt(cursor *cnode, path string, values []any) {
	in := &indexNode{byValue: make(map[any]*cnode, len(values))}
	for _, v := range values {
		in.order = append(in.order, v)
		in.byValue[v] = newCnode()
	}
	cursor.order = append(cursor.order, path)
	cursor.byName[path] = in
}

// descend walks root along deps (ancestor index names, outermost first),
// invoking fn once per leaf-to-current-depth binding consistent with those
// ancestors, with the cnode reached and the binding accumulated so far.
func descend(root *cnode, deps []string, acc index.Bindings, fn func(cursor *cnode, bindings index.Bindings)) {
	if len(deps) == 0 {
		fn(root, acc)
		return
	}
	name := deps[0]
	node := root.byName[name]
	if node == nil {
		return
	}
	for _, v := range node.order {
		next := make(index.Bindings, len(acc)+1)
		for k, bv := range acc {
			next[k] = bv
		}
		next[name] = v
		descend(node.byValue[v], deps[1:], next, fn)
	}
}

// Walk executes one branch against one payload: it builds the nested
// context tree by processing each index entry in branch order (entries
// already arrive in dependency order, guaranteed by mapcompile.Compile),
// collects the columns that accumulate along the way, then flattens the
// tree into one Emission per leaf-to-root binding. A branch with no index
// entries emits its column tuple once with an empty binding.
func Walk(branch mapcompile.Branch, idx Indexes, payload []byte) []Emission {
	root := newCnode()
	var columns []string
	sawIndex := false

	for _, entry := range branch {
		definition, ext, ok := idx.Lookup(entry.Path)
		if !ok {
			columns = append(columns, entry.Path)
			continue
		}
		sawIndex = true
		if len(entry.Deps) == 0 {
			attachAt(root, entry.Path, definition.Values(ext, payload, index.Bindings{}))
			continue
		}
		descend(root, entry.Deps, index.Bindings{}, func(cursor *cnode, bindings index.Bindings) {
			attachAt(cursor, entry.Path, definition.Values(ext, payload, bindings))
		})
	}

	if !sawIndex {
		return []Emission{{Columns: columns, Bindings: index.Bindings{}}}
	}

	emissions := make([]Emission, 0)
	for _, bindings := range enumerate(root) {
		emissions = append(emissions, Emission{Columns: columns, Bindings: bindings})
	}
	return emissions
}

// enumerate performs the Cartesian product across every index name at c's
// level, recursing into each value's subtree first so nested indexes
// contribute their own dimension before siblings are combined.
func enumerate(c *cnode) []index.Bindings {
	if len(c.order) == 0 {
		return []index.Bindings{{}}
	}

	combos := []index.Bindings{{}}
	for _, name := range c.order {
		node := c.byName[name]

		var forName []index.Bindings
		for _, v := range node.order {
			for _, sub := range enumerate(node.byValue[v]) {
				merged := make(index.Bindings, len(sub)+1)
				merged[name] = v
				for k, sv := range sub {
					merged[k] = sv
				}
				forName = append(forName, merged)
			}
		}

		var next []index.Bindings
		for _, base := range combos {
			for _, add := range forName {
				merged := make(index.Bindings, len(base)+len(add))
				for k, v := range base {
					merged[k] = v
				}
				for k, v := range add {
					merged[k] = v
				}
				next = append(next, merged)
			}
		}
		combos = next
	}
	return combos
}
