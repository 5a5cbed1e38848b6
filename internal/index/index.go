// Package index implements a component that, given an extractor, a
// payload, and the index bindings of enclosing indexes, produces the list
// of scalar child index values to enumerate. Grounded on
// original_source/batchout/std/indexes/scalar.py.
package index

import (
	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/extractor"
	"github.com/ilia-khaustov/batchout-go/internal/pathfmt"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// Bindings maps parent index names to their currently bound scalar value,
// used to format a path-template's `{parent_index}` placeholders.
type Bindings map[string]any

// Index enumerates child values for one level of nesting.
type Index interface {
	// Values extracts path (formatted with bindings) from payload via ext
	// and returns the child values to enumerate for this level. Non-matching
	// payload shapes return an empty (not nil-erroring) slice.
	Values(ext extractor.Extractor, payload []byte, bindings Bindings) []any

	// ExtractorRef names the Extractor component this index draws values
	// through.
	ExtractorRef() string
}

// scalarIndex is the shared path/extractor-ref state of every std Index
// kind; each kind differs only in how it interprets the extracted value.
type scalarIndex struct {
	path         string
	extractorRef string
}

func newScalarIndex(component string, fragment registry.Fragment) (scalarIndex, error) {
	path, err := config.BindString(component, fragment, config.Option{Key: "path", Required: true})
	if err != nil {
		return scalarIndex{}, err
	}
	extractorRef, err := config.BindString(component, fragment, config.Option{Key: "extractor", Required: true})
	if err != nil {
		return scalarIndex{}, err
	}
	return scalarIndex{path: path, extractorRef: extractorRef}, nil
}

// ExtractorRef names the Extractor component this index draws values
// through, resolved by the caller that wires indexes together (a dangling
// ref surfaces as an UndefinedReferenceError).
func (s scalarIndex) ExtractorRef() string { return s.extractorRef }

func (s scalarIndex) formattedPath(bindings Bindings) string {
	return pathfmt.Format(s.path, bindings)
}

// ForList is the `for_list` Index kind: it extracts a sized sequence and
// enumerates `[first_index .. first_index+len)`, honoring the extractor's
// native indexing origin.
type ForList struct{ scalarIndex }

// NewForList constructs a for_list index from a resolved fragment.
func NewForList(fragment registry.Fragment) (*ForList, error) {
	base, err := newScalarIndex("index.for_list", fragment)
	if err != nil {
		return nil, err
	}
	return &ForList{scalarIndex: base}, nil
}

// Values implements Index.
func (f *ForList) Values(ext extractor.Extractor, payload []byte, bindings Bindings) []any {
	_, v := ext.Extract(f.formattedPath(bindings), payload)
	n, ok := sizedLen(v)
	if !ok {
		return nil
	}
	first := ext.FirstIndex()
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = first + i
	}
	return out
}

// ForObject is the `for_object` Index kind: it extracts a mapping and
// enumerates its keys.
type ForObject struct{ scalarIndex }

// NewForObject constructs a for_object index from a resolved fragment.
func NewForObject(fragment registry.Fragment) (*ForObject, error) {
	base, err := newScalarIndex("index.for_object", fragment)
	if err != nil {
		return nil, err
	}
	return &ForObject{scalarIndex: base}, nil
}

// Values implements Index.
func (f *ForObject) Values(ext extractor.Extractor, payload []byte, bindings Bindings) []any {
	_, v := ext.Extract(f.formattedPath(bindings), payload)
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make([]any, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// FromList is the `from_list` Index kind: it extracts an iterable and
// enumerates its values verbatim (not their positions).
type FromList struct{ scalarIndex }

// NewFromList constructs a from_list index from a resolved fragment.
func NewFromList(fragment registry.Fragment) (*FromList, error) {
	base, err := newScalarIndex("index.from_list", fragment)
	if err != nil {
		return nil, err
	}
	return &FromList{scalarIndex: base}, nil
}

// Values implements Index.
func (f *FromList) Values(ext extractor.Extractor, payload []byte, bindings Bindings) []any {
	_, v := ext.Extract(f.formattedPath(bindings), payload)
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]any, len(list))
	copy(out, list)
	return out
}

// sizedLen reports the length of a "sized" extracted value: a slice of any,
// matching the source's Sized check that excludes bare strings. An XPath
// for_list index pairs with a take_all-strategy extractor, whose Reduce
// already yields a []any of matched values.
func sizedLen(v any) (int, bool) {
	list, ok := v.([]any)
	if !ok {
		return 0, false
	}
	return len(list), true
}

var (
	_ Index = (*ForList)(nil)
	_ Index = (*ForObject)(nil)
	_ Index = (*FromList)(nil)
)
