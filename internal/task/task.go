// Package task implements a reader or writer binding of
// inputs/outputs/selector/threads. Grounded on
// original_source/batchout/std/tasks/{base,reader,writer}.py.
package task

import (
	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// Type discriminates a Task's role.
type Type string

// The two Task kinds.
const (
	TypeReader Type = "reader"
	TypeWriter Type = "writer"
)

// Task is a reader or writer binding of the other components.
type Task interface {
	// Type reports whether this is a reader or writer task.
	Type() Type

	// Selector names the selector this task reads or writes through, or ""
	// for a reader with no pagination selector.
	Selector() string

	// Components exposes the task's own fields as a plain mapping.
	Components() map[string]any
}

// Reader is the `reader` Task kind: fetches from named inputs, optionally
// paginated by a selector's previous-run rows, with up to Threads workers.
type Reader struct {
	inputs   []string
	selector string
	threads  int
}

// NewReader constructs a reader task from a resolved fragment.
func NewReader(fragment registry.Fragment) (*Reader, error) {
	inputs, err := config.BindStringSlice("task.reader", fragment, config.Option{Key: "inputs", Required: true})
	if err != nil {
		return nil, err
	}
	selector, err := config.BindString("task.reader", fragment, config.Option{Key: "selector"})
	if err != nil {
		return nil, err
	}
	threads, err := config.BindInt("task.reader", fragment, config.Option{Key: "threads", Default: 1})
	if err != nil {
		return nil, err
	}
	if threads <= 0 {
		threads = 1
	}
	return &Reader{inputs: inputs, selector: selector, threads: threads}, nil
}

// Type implements Task.
func (r *Reader) Type() Type { return TypeReader }

// Selector implements Task.
func (r *Reader) Selector() string { return r.selector }

// Inputs names the input components this task fetches from.
func (r *Reader) Inputs() []string { return append([]string{}, r.inputs...) }

// Threads reports the bounded worker pool size for this task's reads.
func (r *Reader) Threads() int { return r.threads }

// Components implements Task.
func (r *Reader) Components() map[string]any {
	return map[string]any{
		"selector": r.selector,
		"inputs":   r.Inputs(),
		"threads":  r.threads,
	}
}

// Writer is the `writer` Task kind: projects the current run's scratch
// through a selector and ingests into each named output.
type Writer struct {
	outputs  []string
	selector string
}

// NewWriter constructs a writer task from a resolved fragment.
func NewWriter(fragment registry.Fragment) (*Writer, error) {
	outputs, err := config.BindStringSlice("task.writer", fragment, config.Option{Key: "outputs", Required: true})
	if err != nil {
		return nil, err
	}
	selector, err := config.BindString("task.writer", fragment, config.Option{Key: "selector", Required: true})
	if err != nil {
		return nil, err
	}
	return &Writer{outputs: outputs, selector: selector}, nil
}

// Type implements Task.
func (w *Writer) Type() Type { return TypeWriter }

// Selector implements Task.
func (w *Writer) Selector() string { return w.selector }

// Outputs names the output components this task ingests into.
func (w *Writer) Outputs() []string { return append([]string{}, w.outputs...) }

// Components implements Task.
func (w *Writer) Components() map[string]any {
	return map[string]any{
		"selector": w.selector,
		"outputs":  w.Outputs(),
	}
}

// Registry keys used to bind the two Task kinds.
const (
	KindReader = "reader"
	KindWriter = "writer"
)

// Register binds both Task kinds into reg.
func Register(reg *registry.Registry) error {
	if err := reg.Bind(registry.KindTask, KindReader, func(fragment registry.Fragment) (any, error) {
		return NewReader(fragment)
	}); err != nil {
		return err
	}
	return reg.Bind(registry.KindTask, KindWriter, func(fragment registry.Fragment) (any, error) {
		return NewWriter(fragment)
	})
}

var (
	_ Task = (*Reader)(nil)
	_ Task = (*Writer)(nil)
)
