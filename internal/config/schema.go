package config

import (
	"fmt"

	"github.com/ilia-khaustov/batchout-go/internal/registry"
	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

// Option describes one recognized config key for a component kind: a
// binder records key, required?, default, choice set, and doc so
// documentation tooling could read it back.
type Option struct {
	Key            string
	Required       bool
	Default        any
	DefaultFactory func() any
	Choices        []any
	Doc            string
}

// Bind resolves one Option against a fragment, enforcing choice membership
// and applying defaults, returning a ConfigInvalidError when a required key
// is missing or null.
func Bind(component string, fragment registry.Fragment, opt Option) (any, error) {
	val, present := fragment[opt.Key]
	if present && val != nil {
		if len(opt.Choices) > 0 && !choiceContains(opt.Choices, val) {
			return nil, berrors.NewConfigInvalid(component, opt.Key,
				fmt.Sprintf("%v is not one of the supported choices %v", val, opt.Choices), nil)
		}
		return val, nil
	}

	if opt.DefaultFactory != nil {
		return opt.DefaultFactory(), nil
	}
	if opt.Default != nil {
		return opt.Default, nil
	}
	if opt.Required {
		return nil, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s is required", opt.Key), nil)
	}
	return nil, nil
}

func choiceContains(choices []any, val any) bool {
	for _, c := range choices {
		if c == val {
			return true
		}
	}
	return false
}

// BindString is Bind specialized for string-typed options.
func BindString(component string, fragment registry.Fragment, opt Option) (string, error) {
	v, err := Bind(component, fragment, opt)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s must be a string", opt.Key), nil)
	}
	return s, nil
}

// BindInt is Bind specialized for integer-typed options (YAML decodes bare
// integers as int already; this also accepts float64 for values that came
// through a generic map[string]any after JSON-shaped env substitution).
func BindInt(component string, fragment registry.Fragment, opt Option) (int, error) {
	v, err := Bind(component, fragment, opt)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s must be an integer", opt.Key), nil)
	}
}

// BindBool is Bind specialized for boolean-typed options.
func BindBool(component string, fragment registry.Fragment, opt Option) (bool, error) {
	v, err := Bind(component, fragment, opt)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s must be a boolean", opt.Key), nil)
	}
	return b, nil
}

// BindStringMap is Bind specialized for string-to-string mapping options
// such as HTTP `headers` or `params`.
func BindStringMap(component string, fragment registry.Fragment, opt Option) (map[string]string, error) {
	v, err := Bind(component, fragment, opt)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s must be a mapping", opt.Key), nil)
	}
	out := make(map[string]string, len(raw))
	for k, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s entries must be strings", opt.Key), nil)
		}
		out[k] = s
	}
	return out, nil
}

// BindIntSlice is Bind specialized for integer-list options such as HTTP
// `ignore_status_codes`.
func BindIntSlice(component string, fragment registry.Fragment, opt Option) ([]int, error) {
	v, err := Bind(component, fragment, opt)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s must be a list", opt.Key), nil)
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case int:
			out = append(out, n)
		case float64:
			out = append(out, int(n))
		default:
			return nil, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s entries must be integers", opt.Key), nil)
		}
	}
	return out, nil
}

// BindStringSlice is Bind specialized for string-list options such as
// regex `flags` or a task's `inputs`/`outputs` references.
func BindStringSlice(component string, fragment registry.Fragment, opt Option) ([]string, error) {
	v, err := Bind(component, fragment, opt)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s must be a list", opt.Key), nil)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, berrors.NewConfigInvalid(component, opt.Key, fmt.Sprintf("%s entries must be strings", opt.Key), nil)
		}
		out = append(out, s)
	}
	return out, nil
}
