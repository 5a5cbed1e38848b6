// Package processor implements pure value transformers chained before a
// Column's cast. Grounded on original_source/batchout/std/processors/pure.py.
package processor

import (
	"fmt"
	"strings"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// Processor transforms one extracted value before it is cast.
type Processor interface {
	Process(value any) any
}

// Replace is the `replace` std processor: string substitution with an
// optional replacement cap, mirroring Python's str.replace(old, new, count).
type Replace struct {
	old, new string
	count    int
}

// NewReplace constructs a Replace processor from a resolved fragment.
func NewReplace(fragment registry.Fragment) (*Replace, error) {
	old, err := config.BindString("processor.replace", fragment, config.Option{Key: "old", Required: true})
	if err != nil {
		return nil, err
	}
	next, err := config.BindString("processor.replace", fragment, config.Option{Key: "new", Required: true})
	if err != nil {
		return nil, err
	}
	count, err := config.BindInt("processor.replace", fragment, config.Option{Key: "count", Default: -1})
	if err != nil {
		return nil, err
	}
	return &Replace{old: old, new: next, count: count}, nil
}

// Process implements Processor.
func (r *Replace) Process(value any) any {
	s := fmt.Sprintf("%v", value)
	if r.count < 0 {
		return strings.ReplaceAll(s, r.old, r.new)
	}
	return strings.Replace(s, r.old, r.new, r.count)
}

// Trim is the `trim` std processor: strips leading/trailing whitespace.
type Trim struct{}

// NewTrim constructs a Trim processor; it takes no options.
func NewTrim(registry.Fragment) (*Trim, error) { return &Trim{}, nil }

// Process implements Processor.
func (Trim) Process(value any) any {
	return strings.TrimSpace(fmt.Sprintf("%v", value))
}

// Lower is the `lower` std processor: lowercases its input.
type Lower struct{}

// NewLower constructs a Lower processor; it takes no options.
func NewLower(registry.Fragment) (*Lower, error) { return &Lower{}, nil }

// Process implements Processor.
func (Lower) Process(value any) any {
	return strings.ToLower(fmt.Sprintf("%v", value))
}

// Upper is the `upper` std processor: uppercases its input.
type Upper struct{}

// NewUpper constructs an Upper processor; it takes no options.
func NewUpper(registry.Fragment) (*Upper, error) { return &Upper{}, nil }

// Process implements Processor.
func (Upper) Process(value any) any {
	return strings.ToUpper(fmt.Sprintf("%v", value))
}

var (
	_ Processor = (*Replace)(nil)
	_ Processor = Trim{}
	_ Processor = Lower{}
	_ Processor = Upper{}
)
