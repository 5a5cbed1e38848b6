// Package config loads the top-level batchout configuration document and
// implements a "recognized option" binding pattern: each component kind
// declares a schema of options (key, required, default, choices, doc)
// consulted at construction. Grounded on internal/config/parser.go for YAML
// loading and internal/config/validator_instance.go for the idea of a
// shared, declaratively-configured validation surface, generalized here
// from Go struct tags (closed, one shape per step type) to a data-driven
// Option list, because batchout's fragment shapes vary per (kind, type)
// pair rather than belonging to one fixed struct.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ilia-khaustov/batchout-go/internal/registry"
	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

// Document is the parsed top-level configuration.
type Document struct {
	Inputs     OrderedFragments           `yaml:"inputs"`
	Extractors OrderedFragments           `yaml:"extractors"`
	Indexes    OrderedFragments           `yaml:"indexes"`
	Columns    OrderedFragments           `yaml:"columns"`
	Outputs    OrderedFragments           `yaml:"outputs"`
	Selectors  OrderedFragments           `yaml:"selectors"`
	Tasks      OrderedFragments           `yaml:"tasks"`
	Maps       map[string][]any           `yaml:"maps"`
	Defaults   map[string]map[string]any `yaml:"defaults"`
}

// OrderedFragments decodes a YAML mapping of name -> fragment while
// preserving declaration order: column output order must follow declaration
// order, and a plain Go map (like YAML's own data model) does not remember
// it.
type OrderedFragments struct {
	Names     []string
	Fragments map[string]registry.Fragment
}

// UnmarshalYAML implements yaml.Unmarshaler over the raw mapping node so
// key order survives the decode, which map[string]T decoding would discard.
func (o *OrderedFragments) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got %v", node.Kind)
	}

	o.Fragments = make(map[string]registry.Fragment, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return err
		}
		var fragment registry.Fragment
		if err := node.Content[i+1].Decode(&fragment); err != nil {
			return err
		}
		o.Names = append(o.Names, name)
		o.Fragments[name] = fragment
	}
	return nil
}

// Contains reports whether name was declared.
func (o OrderedFragments) Contains(name string) bool {
	_, ok := o.Fragments[name]
	return ok
}

// Len returns the number of declared names.
func (o OrderedFragments) Len() int { return len(o.Names) }

// Load reads and parses a configuration document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, berrors.NewConfigInvalid("document", path, "failed to read config file", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document from raw YAML bytes.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, berrors.NewConfigInvalid("document", "", "failed to parse YAML", err)
	}
	return &doc, nil
}

// WithDefaults merges the document's per-kind defaults under every fragment
// of that kind, the fragment's own values winning on conflict, the same
// precedence as the original `c.update(self._defaults.get(kind, {}))`
// (original_source/batchout/core/batch.py), translated from Python's
// mutate-in-place dict update to an explicit merge that never touches the
// caller's map.
func WithDefaults(fragments map[string]registry.Fragment, alias string, defaults map[string]map[string]any) map[string]registry.Fragment {
	merged := make(map[string]registry.Fragment, len(fragments))
	kindDefaults := defaults[alias]
	for name, fragment := range fragments {
		out := make(registry.Fragment, len(fragment)+len(kindDefaults))
		for k, v := range kindDefaults {
			out[k] = v
		}
		for k, v := range fragment {
			out[k] = v
		}
		merged[name] = out
	}
	return merged
}

// Names returns the sorted-by-insertion-irrelevant key set of a fragment map,
// as a convenience for validation error messages.
func Names(fragments map[string]registry.Fragment) []string {
	names := make([]string, 0, len(fragments))
	for name := range fragments {
		names = append(names, name)
	}
	return names
}

// RequireString is a small helper to read a required string field out of a
// fragment, returning a ConfigInvalidError
// if it is missing or not a string.
func RequireString(component string, fragment registry.Fragment, key string) (string, error) {
	raw, ok := fragment[key]
	if !ok {
		return "", berrors.NewConfigInvalid(component, key, fmt.Sprintf("%s is missing", key), nil)
	}
	str, ok := raw.(string)
	if !ok || str == "" {
		return "", berrors.NewConfigInvalid(component, key, fmt.Sprintf("%s must be a non-empty string", key), nil)
	}
	return str, nil
}
