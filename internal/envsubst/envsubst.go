// Package envsubst implements `from_env` config substitution: a fragment
// may carry a `from_env: {field: ENV_NAME}` mapping that replaces fields
// from the process environment, failing if the field is otherwise required
// (has no existing value in the fragment) and the variable is unset.
// Grounded on update_from_env (original_source/batchout/core/config.py),
// ported from a mutable dict-pop idiom to an immutable copy-and-return one.
package envsubst

import (
	"fmt"
	"os"
)

// Resolve returns a copy of fragment with `from_env` applied and removed.
func Resolve(fragment map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(fragment))
	for k, v := range fragment {
		resolved[k] = v
	}

	raw, ok := resolved["from_env"]
	if !ok {
		return resolved, nil
	}
	delete(resolved, "from_env")

	envVars, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("from_env is not a mapping")
	}

	for field, envNameRaw := range envVars {
		envName, ok := envNameRaw.(string)
		if !ok {
			return nil, fmt.Errorf("from_env.%s must name an environment variable", field)
		}
		value, present := os.LookupEnv(envName)
		if !present {
			if _, hasExisting := resolved[field]; !hasExisting {
				return nil, fmt.Errorf("environment variable %s is not set and %s has no fallback value", envName, field)
			}
			continue
		}
		resolved[field] = value
	}

	return resolved, nil
}
