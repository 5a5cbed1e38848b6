// Package extractor implements a path expression evaluator over a payload,
// with a selection strategy over multiple matches. Grounded on
// original_source/batchout/extractors/base.py (the abstract contract) and
// batchout/std/extractors/mixin.py (the strategy mixin), translated from a
// Python ABC + mixin pair into a Go interface plus a free function that
// every std implementation calls.
package extractor

import (
	"github.com/ilia-khaustov/batchout-go/internal/logging"
)

// Strategy selects among multiple path matches.
type Strategy string

// The five supported strategies. Not every Extractor implementation
// supports every strategy; an unsupported choice is a config error raised
// at construction.
const (
	TakeFirst        Strategy = "take_first"
	TakeFirstNotNull Strategy = "take_first_not_null"
	TakeLast         Strategy = "take_last"
	TakeLastNotNull  Strategy = "take_last_not_null"
	TakeAll          Strategy = "take_all"
)

// Match is one (path, value) pair produced while evaluating a path
// expression against a payload, before strategy reduction.
type Match struct {
	Path  string
	Value any
}

// Extractor evaluates one path expression against one payload and reduces
// the result set with its configured strategy.
type Extractor interface {
	// Extract returns the matched path and value per the extractor's
	// strategy, or (nil, nil) if nothing matched or the payload/path could
	// not be evaluated. Extraction failures are logged internally; they
	// never propagate to the caller.
	Extract(path string, payload []byte) (matchedPath any, value any)

	// FirstIndex reports the native indexing origin this extractor's
	// underlying engine uses for sequences (0 for JSONPath/regex, 1 for
	// XPath), so Index implementations can match it.
	FirstIndex() int
}

// Reduce applies a Strategy to an ordered slice of Matches. take_all returns
// the full tuples of paths and values; every other strategy returns a
// single (path, value) pair, or (nil, nil) if no match satisfies it.
func Reduce(strategy Strategy, matches []Match) (matchedPath any, value any) {
	switch strategy {
	case TakeFirst:
		for _, m := range matches {
			return m.Path, m.Value
		}
	case TakeFirstNotNull:
		for _, m := range matches {
			if m.Value != nil {
				return m.Path, m.Value
			}
		}
	case TakeLast:
		var path any
		var val any
		for _, m := range matches {
			path, val = m.Path, m.Value
		}
		return path, val
	case TakeLastNotNull:
		var path any
		var val any
		for _, m := range matches {
			if m.Value != nil {
				path, val = m.Path, m.Value
			}
		}
		return path, val
	case TakeAll:
		if len(matches) == 0 {
			return nil, nil
		}
		paths := make([]any, len(matches))
		values := make([]any, len(matches))
		for i, m := range matches {
			paths[i] = m.Path
			values[i] = m.Value
		}
		return paths, values
	}
	return nil, nil
}

// SupportedStrategies converts the given strategies into a list usable as
// config.Option's Choices field.
func SupportedStrategies(strategies ...Strategy) []any {
	out := make([]any, len(strategies))
	for i, s := range strategies {
		out[i] = string(s)
	}
	return out
}

// logAndFail is the one place an extractor reports an extraction failure: it
// logs and returns the (nil, nil) sentinel instead of surfacing an error to
// the caller.
func logAndFail(log *logging.Logger, path string, err error) (any, any) {
	if log != nil {
		log.Error(err, "extraction failed", "path", path)
	}
	return nil, nil
}
