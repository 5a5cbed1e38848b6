// Package input implements a pull-based payload source with
// fetch/commit/reset, plus a Clone that reconstructs a fresh instance from
// the same stored config for per-worker isolation: workers clone the
// inputs they read, constructing fresh instances from the stored config.
package input

import "github.com/ilia-khaustov/batchout-go/internal/registry"

// Input is a pull-based payload source.
type Input interface {
	// Fetch pulls one payload parameterized by params; a nil payload with a
	// nil error signals end-of-stream for this round.
	Fetch(params map[string]any) ([]byte, error)

	// Commit acknowledges progress to the underlying source. Must tolerate
	// repeated calls.
	Commit() error

	// Reset rewinds in-memory iteration state for the next round; it does
	// not undo Commit.
	Reset() error

	// Clone constructs a fresh, independent instance from the same stored
	// config fragment, for safe use by a single worker goroutine.
	Clone() (Input, error)
}

// Registry keys used to bind std Input kinds.
const (
	KindConst = "const"
	KindFile  = "file"
	KindHTTP  = "http"
)

// Register binds every std Input kind into reg.
func Register(reg *registry.Registry) error {
	if err := reg.Bind(registry.KindInput, KindConst, func(fragment registry.Fragment) (any, error) {
		return NewConst(fragment)
	}); err != nil {
		return err
	}
	if err := reg.Bind(registry.KindInput, KindFile, func(fragment registry.Fragment) (any, error) {
		return NewFile(fragment)
	}); err != nil {
		return err
	}
	if err := reg.Bind(registry.KindInput, KindHTTP, func(fragment registry.Fragment) (any, error) {
		return NewHTTP(fragment)
	}); err != nil {
		return err
	}
	return nil
}
