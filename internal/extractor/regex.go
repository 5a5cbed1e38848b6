package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// regexFlagPrefixes maps the flag names this extractor accepts to the Go
// regexp inline-flag syntax. Go's regexp/syntax does not expose Python's
// full re.RegexFlag set (ASCII/LOCALE have no RE2 equivalent), so only the
// flags RE2 can express are supported; anything else is a config error.
var regexFlagPrefixes = map[string]string{
	"IGNORECASE": "i",
	"MULTILINE":  "m",
	"DOTALL":     "s",
}

// Regex is a regular-expression extractor over raw bytes, matched against a
// capture group rather than a structured path. Grounded on
// original_source/batchout/std/extractors/regex.py.
type Regex struct {
	strategy    Strategy
	group       int
	decodeBytes bool
	encoding    string
	flagPrefix  string
	log         *logging.Logger

	mu       sync.Mutex
	parsedBy map[string]*regexp.Regexp
}

// NewRegex constructs a Regex extractor from a resolved fragment.
func NewRegex(fragment registry.Fragment, log *logging.Logger) (*Regex, error) {
	strategy, err := config.BindString("extractor.regex", fragment, config.Option{
		Key:     "strategy",
		Default: string(TakeFirst),
		Choices: SupportedStrategies(TakeFirst, TakeLast, TakeAll),
	})
	if err != nil {
		return nil, err
	}
	group, err := config.BindInt("extractor.regex", fragment, config.Option{Key: "group", Default: 0})
	if err != nil {
		return nil, err
	}
	decodeBytes, err := config.BindBool("extractor.regex", fragment, config.Option{Key: "decode_bytes", Default: true})
	if err != nil {
		return nil, err
	}
	encoding, err := config.BindString("extractor.regex", fragment, config.Option{Key: "encoding", Default: "utf8"})
	if err != nil {
		return nil, err
	}
	flags, err := config.BindStringSlice("extractor.regex", fragment, config.Option{Key: "flags", Default: []any{}})
	if err != nil {
		return nil, err
	}

	var prefix strings.Builder
	for _, flag := range flags {
		letter, ok := regexFlagPrefixes[strings.ToUpper(flag)]
		if !ok {
			return nil, fmt.Errorf("extractor.regex: unsupported flag %q", flag)
		}
		prefix.WriteString(letter)
	}

	return &Regex{
		strategy:    Strategy(strategy),
		group:       group,
		decodeBytes: decodeBytes,
		encoding:    encoding,
		flagPrefix:  prefix.String(),
		log:         log,
		parsedBy:    make(map[string]*regexp.Regexp),
	}, nil
}

// FirstIndex implements Extractor: regex capture groups are 0-indexed.
func (r *Regex) FirstIndex() int { return 0 }

// Extract implements Extractor.
func (r *Regex) Extract(path string, payload []byte) (any, any) {
	text, err := r.decode(payload)
	if err != nil {
		return logAndFail(r.log, path, err)
	}

	re, err := r.compiled(path)
	if err != nil {
		return logAndFail(r.log, path, err)
	}

	groups := re.FindAllStringSubmatch(text, -1)
	if r.group < 0 {
		return logAndFail(r.log, path, fmt.Errorf("group index %d must not be negative", r.group))
	}

	var matches []Match
	for _, g := range groups {
		if r.group >= len(g) {
			continue
		}
		matches = append(matches, Match{Path: path, Value: g[r.group]})
	}
	return Reduce(r.strategy, matches)
}

// decode only supports UTF-8-compatible encodings; non-UTF-8 payloads pass
// through as their raw byte sequence (Go has no stdlib transcoder).
func (r *Regex) decode(payload []byte) (string, error) {
	if !r.decodeBytes {
		return string(payload), nil
	}
	if !strings.EqualFold(r.encoding, "utf8") && !strings.EqualFold(r.encoding, "utf-8") {
		return "", fmt.Errorf("unsupported encoding %q", r.encoding)
	}
	return string(payload), nil
}

func (r *Regex) compiled(path string) (*regexp.Regexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.parsedBy[path]; ok {
		return cached, nil
	}

	pattern := path
	if r.flagPrefix != "" {
		pattern = fmt.Sprintf("(?%s)%s", r.flagPrefix, path)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", path, err)
	}
	r.parsedBy[path] = re
	return re, nil
}

var _ Extractor = (*Regex)(nil)
