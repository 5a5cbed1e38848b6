package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// JSONPath is a minimal JSONPath-flavored extractor supporting dotted field
// access, bracketed 0-based indices, and a `[*]` wildcard that fans a path
// out across every element of an array, enough to express path templates
// once their `{index}` placeholders are already substituted. Grounded on
// original_source/batchout/ext/jsonpath/extractors.go (jsonpath_rw-backed)
// for the extract()/strategy contract; the path grammar itself is a
// hand-rolled subset since no JSONPath library is available.
type JSONPath struct {
	strategy Strategy
	log      *logging.Logger

	mu         sync.Mutex
	segmentsBy map[string][]pathSegment
}

// NewJSONPath constructs a JSONPath extractor from a resolved fragment.
func NewJSONPath(fragment registry.Fragment, log *logging.Logger) (*JSONPath, error) {
	strategy, err := config.BindString("extractor.jsonpath", fragment, config.Option{
		Key:     "strategy",
		Default: string(TakeFirst),
		Choices: SupportedStrategies(TakeFirst, TakeFirstNotNull, TakeLast, TakeLastNotNull, TakeAll),
	})
	if err != nil {
		return nil, err
	}
	return &JSONPath{strategy: Strategy(strategy), log: log, segmentsBy: make(map[string][]pathSegment)}, nil
}

// FirstIndex implements Extractor: JSONPath arrays are 0-indexed.
func (j *JSONPath) FirstIndex() int { return 0 }

// Extract implements Extractor.
func (j *JSONPath) Extract(path string, payload []byte) (any, any) {
	segments, err := j.compiled(path)
	if err != nil {
		return logAndFail(j.log, path, err)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return logAndFail(j.log, path, fmt.Errorf("invalid JSON payload: %w", err))
	}

	matches := walkJSON(doc, segments, "$")
	return Reduce(j.strategy, matches)
}

func (j *JSONPath) compiled(path string) ([]pathSegment, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if cached, ok := j.segmentsBy[path]; ok {
		return cached, nil
	}
	segments, err := parsePathSegments(path)
	if err != nil {
		return nil, err
	}
	j.segmentsBy[path] = segments
	return segments, nil
}

// pathSegment is one dotted field or bracketed index/wildcard component of a
// compiled path, shared between the JSONPath and XPath grammars.
type pathSegment struct {
	field      string // "" for a pure index segment
	index      int    // valid when hasIndex
	hasIndex   bool
	isWildcard bool
}

// parsePathSegments parses paths like "$.cart[2].id", "cart[*].name", or
// "customer.id" into a segment list. Leading "$." / "$" is stripped.
func parsePathSegments(path string) ([]pathSegment, error) {
	p := strings.TrimPrefix(path, "$.")
	p = strings.TrimPrefix(p, "$")
	if p == "" {
		return nil, nil
	}

	var segments []pathSegment
	for _, field := range strings.Split(p, ".") {
		if field == "" {
			continue
		}
		name, indices, err := splitIndices(field)
		if err != nil {
			return nil, err
		}
		if name != "" {
			segments = append(segments, pathSegment{field: name})
		}
		segments = append(segments, indices...)
	}
	return segments, nil
}

// splitIndices splits "cart[2][0]" into ("cart", [{index:2},{index:0}]) and
// "cart[*]" into ("cart", [{isWildcard:true}]).
func splitIndices(field string) (string, []pathSegment, error) {
	open := strings.IndexByte(field, '[')
	if open == -1 {
		return field, nil, nil
	}
	name := field[:open]
	rest := field[open:]

	var indices []pathSegment
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("malformed path segment %q", field)
		}
		closeIdx := strings.IndexByte(rest, ']')
		if closeIdx == -1 {
			return "", nil, fmt.Errorf("unterminated bracket in %q", field)
		}
		inner := rest[1:closeIdx]
		if inner == "*" {
			indices = append(indices, pathSegment{isWildcard: true})
		} else {
			n, err := strconv.Atoi(inner)
			if err != nil {
				return "", nil, fmt.Errorf("invalid index %q in %q", inner, field)
			}
			indices = append(indices, pathSegment{index: n, hasIndex: true})
		}
		rest = rest[closeIdx+1:]
	}
	return name, indices, nil
}

// walkJSON fans a compiled path out across a decoded JSON document,
// producing one Match per terminal value reached.
func walkJSON(doc any, segments []pathSegment, pathSoFar string) []Match {
	if len(segments) == 0 {
		return []Match{{Path: pathSoFar, Value: doc}}
	}

	seg := segments[0]
	rest := segments[1:]

	if seg.field != "" {
		m, ok := doc.(map[string]any)
		if !ok {
			return nil
		}
		child, ok := m[seg.field]
		if !ok {
			return nil
		}
		return walkJSON(child, rest, pathSoFar+"."+seg.field)
	}

	list, ok := doc.([]any)
	if !ok {
		return nil
	}

	if seg.isWildcard {
		var out []Match
		for i, elem := range list {
			out = append(out, walkJSON(elem, rest, fmt.Sprintf("%s[%d]", pathSoFar, i))...)
		}
		return out
	}

	if seg.index < 0 || seg.index >= len(list) {
		return nil
	}
	return walkJSON(list[seg.index], rest, fmt.Sprintf("%s[%d]", pathSoFar, seg.index))
}

var _ Extractor = (*JSONPath)(nil)
