// Package registry implements a process-wide (kind, type name) -> constructor
// table, built as a typed factory table instead of a class-discriminated
// runtime dispatch: Go has no single dynamic base class to key on, so the
// table is keyed by an explicit Kind string crossed with the fragment's
// `type` discriminator, generalizing internal/plugin/registry.go (which
// keys a single map by step type) to batchout's several component kinds.
package registry

import (
	"sync"

	"github.com/ilia-khaustov/batchout-go/internal/envsubst"
	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

// Kind identifies a base component category.
type Kind string

// The component kinds the Batch orchestrator wires.
const (
	KindInput     Kind = "input"
	KindExtractor Kind = "extractor"
	KindIndex     Kind = "index"
	KindColumn    Kind = "column"
	KindProcessor Kind = "processor"
	KindOutput    Kind = "output"
	KindSelector  Kind = "selector"
	KindTask      Kind = "task"
)

// Fragment is an unordered config mapping with a required `type` key and
// arbitrary recognized options.
type Fragment map[string]any

// Type returns the fragment's `type` discriminator, or "" if absent.
func (f Fragment) Type() string {
	v, _ := f["type"].(string)
	return v
}

// Constructor builds a component instance from a resolved fragment.
type Constructor func(fragment Fragment) (any, error)

// Registry is a process-wide table of (Kind, type name) -> Constructor.
type Registry struct {
	mu    sync.RWMutex
	bound map[Kind]map[string]Constructor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{bound: make(map[Kind]map[string]Constructor)}
}

// Bind records a constructor for (kind, name). Duplicate binding is an error.
func (r *Registry) Bind(kind Kind, name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bound[kind] == nil {
		r.bound[kind] = make(map[string]Constructor)
	}
	if _, exists := r.bound[kind][name]; exists {
		return berrors.NewClassAlreadyBound(string(kind), name)
	}
	r.bound[kind][name] = ctor
	return nil
}

// Create reads fragment's `type`, resolves environment substitution, looks
// up the bound constructor, and invokes it. A missing `type` or an unbound
// name is a config error.
func (r *Registry) Create(kind Kind, fragment Fragment) (any, error) {
	name := fragment.Type()
	if name == "" {
		return nil, berrors.NewUnknownType(string(kind), "")
	}

	r.mu.RLock()
	ctor, ok := r.bound[kind][name]
	r.mu.RUnlock()
	if !ok {
		return nil, berrors.NewUnknownType(string(kind), name)
	}

	resolved, err := envsubst.Resolve(map[string]any(fragment))
	if err != nil {
		return nil, err
	}

	return ctor(Fragment(resolved))
}

// Has reports whether a (kind, name) constructor is bound, without invoking it.
func (r *Registry) Has(kind Kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bound[kind][name]
	return ok
}
