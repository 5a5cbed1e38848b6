package index

import "github.com/ilia-khaustov/batchout-go/internal/registry"

// Registry keys used to bind the three std Index kinds.
const (
	KindForList   = "for_list"
	KindForObject = "for_object"
	KindFromList  = "from_list"
)

// Register binds every std Index kind into reg.
func Register(reg *registry.Registry) error {
	if err := reg.Bind(registry.KindIndex, KindForList, func(fragment registry.Fragment) (any, error) {
		return NewForList(fragment)
	}); err != nil {
		return err
	}
	if err := reg.Bind(registry.KindIndex, KindForObject, func(fragment registry.Fragment) (any, error) {
		return NewForObject(fragment)
	}); err != nil {
		return err
	}
	return reg.Bind(registry.KindIndex, KindFromList, func(fragment registry.Fragment) (any, error) {
		return NewFromList(fragment)
	})
}
