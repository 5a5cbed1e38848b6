// Package mapcompile compiles the nested per-source literal from the `maps`
// config key into an ordered list of branches: each branch is a sequence of
// (path, deps) entries ready for the walker to execute. Grounded on
// original_source/batchout/core/util.py's Map class, whose recursive
// dict-of-lists construction and depsort() topological ordering this
// package ports from Python generators into Go slices.
package mapcompile

import "sort"

// Entry is one (path, deps) pair of a compiled branch: path names an index
// or column, deps is the ordered tuple of ancestor index names that must be
// bound before path is evaluated.
type Entry struct {
	Path string
	Deps []string
}

// Branch is one ordered sequence of Entry produced by Compile.
type Branch []Entry

// Compile turns the literal config value for one source's `maps` entry
// (a []any of strings and single-key maps, as YAML decodes
// `[leaf, {index: [children...]}]`) into its branches.
//
// Rules:
//   - A string element under parent P with ancestors A yields (element, A).
//   - A mapping {index: [children]} under parent P with ancestors A yields
//     (index, A) plus recursion into children with ancestors A+[index].
//   - A sibling list of such mappings produces a Cartesian product: branches
//     from one sibling combine with branches from the next.
func Compile(elements []any) []Branch {
	return compile(elements, nil)
}

func compile(elements []any, ancestors []string) []Branch {
	var leaves []Entry
	var siblingBranchSets [][]Branch

	for _, el := range elements {
		switch e := el.(type) {
		case string:
			leaves = append(leaves, Entry{Path: e, Deps: cloneDeps(ancestors)})
		case map[string]any:
			for idx, children := range e {
				childAncestors := append(cloneDeps(ancestors), idx)
				sub := compile(asList(children), childAncestors)
				indexEntry := Entry{Path: idx, Deps: cloneDeps(ancestors)}

				withIndex := make([]Branch, len(sub))
				for i, branch := range sub {
					b := make(Branch, 0, len(branch)+1)
					b = append(b, indexEntry)
					b = append(b, branch...)
					withIndex[i] = b
				}
				if len(withIndex) == 0 {
					withIndex = []Branch{{indexEntry}}
				}
				siblingBranchSets = append(siblingBranchSets, withIndex)
			}
		}
	}

	branches := []Branch{{}}
	for _, set := range siblingBranchSets {
		branches = cartesianAppend(branches, set)
	}
	for i := range branches {
		b := make(Branch, 0, len(branches[i])+len(leaves))
		b = append(b, branches[i]...)
		b = append(b, leaves...)
		branches[i] = b
	}

	for i := range branches {
		branches[i] = depSort(branches[i])
	}
	return branches
}

func cartesianAppend(existing []Branch, set []Branch) []Branch {
	out := make([]Branch, 0, len(existing)*len(set))
	for _, e := range existing {
		for _, s := range set {
			combined := make(Branch, 0, len(e)+len(s))
			combined = append(combined, e...)
			combined = append(combined, s...)
			out = append(out, combined)
		}
	}
	return out
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case nil:
		return nil
	default:
		return []any{t}
	}
}

func cloneDeps(deps []string) []string {
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// depSort orders one branch's entries by (indeg - outdeg), stably: indeg is
// an entry's own dependency count, outdeg is how many other entries in the
// same branch name it as a dependency. Entries other entries rely on heavily
// and that themselves depend on little sort first, guaranteeing every index
// precedes anything that references it. Ported from util.py's depsort().
func depSort(entries []Entry) []Entry {
	outdeg := make(map[string]int, len(entries))
	for _, e := range entries {
		for _, d := range e.Deps {
			outdeg[d]++
		}
	}

	keyed := make([]struct {
		entry Entry
		key   int
	}, len(entries))
	for i, e := range entries {
		keyed[i] = struct {
			entry Entry
			key   int
		}{entry: e, key: len(e.Deps) - outdeg[e.Path]}
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].key < keyed[j].key
	})

	out := make([]Entry, len(keyed))
	for i, k := range keyed {
		out[i] = k.entry
	}
	return out
}
