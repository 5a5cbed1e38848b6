package input

import (
	"sync"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// Const is the `const` Input kind: a fixed list of payloads, one per fetch,
// useful for tests and fixtures. Grounded on
// original_source/batchout/std/inputs/const.py.
type Const struct {
	fragment registry.Fragment
	data     []string

	mu  sync.Mutex
	pos int
}

// NewConst constructs a const input from a resolved fragment.
func NewConst(fragment registry.Fragment) (*Const, error) {
	data, err := config.BindStringSlice("input.const", fragment, config.Option{Key: "data", Required: true})
	if err != nil {
		return nil, err
	}
	return &Const{fragment: fragment, data: data}, nil
}

// Fetch implements Input.
func (c *Const) Fetch(_ map[string]any) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos >= len(c.data) {
		return nil, nil
	}
	payload := c.data[c.pos]
	c.pos++
	return []byte(payload), nil
}

// Commit implements Input.
func (c *Const) Commit() error { return nil }

// Reset implements Input.
func (c *Const) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = 0
	return nil
}

// Clone implements Input.
func (c *Const) Clone() (Input, error) { return NewConst(c.fragment) }

var _ Input = (*Const)(nil)
