// Package output implements an ingest target: accepts a column-and-row
// projection, reports how many rows were written, and commits to finalize
// buffered writes.
package output

import (
	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// Output is a sink that ingests projected rows.
type Output interface {
	// Ingest writes rows under columns and reports the count written.
	Ingest(columns []string, rows [][]any) (int, error)

	// Commit finalizes buffered writes. Must tolerate repeated calls.
	Commit() error
}

// Registry keys used to bind std Output kinds.
const (
	KindLogger = "logger"
	KindCSV    = "csv"
)

// Register binds every std Output kind into reg. Logger needs a shared
// logger instance, supplied by the caller.
func Register(reg *registry.Registry, log *logging.Logger) error {
	if err := reg.Bind(registry.KindOutput, KindLogger, func(fragment registry.Fragment) (any, error) {
		return NewLoggerOutput(fragment, log)
	}); err != nil {
		return err
	}
	return reg.Bind(registry.KindOutput, KindCSV, func(fragment registry.Fragment) (any, error) {
		return NewCSV(fragment)
	})
}
