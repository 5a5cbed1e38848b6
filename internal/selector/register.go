package selector

import "github.com/ilia-khaustov/batchout-go/internal/registry"

// KindSQL is the registry key for the `sql` Selector kind.
const KindSQL = "sql"

// Register binds the std Selector kind into reg.
func Register(reg *registry.Registry) error {
	return reg.Bind(registry.KindSelector, KindSQL, func(fragment registry.Fragment) (any, error) {
		return New(fragment)
	})
}
