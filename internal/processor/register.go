package processor

import "github.com/ilia-khaustov/batchout-go/internal/registry"

// Registry keys used to bind the four std Processor kinds.
const (
	KindReplace = "replace"
	KindTrim    = "trim"
	KindLower   = "lower"
	KindUpper   = "upper"
)

// Register binds every std Processor kind into reg.
func Register(reg *registry.Registry) error {
	if err := reg.Bind(registry.KindProcessor, KindReplace, func(fragment registry.Fragment) (any, error) {
		return NewReplace(fragment)
	}); err != nil {
		return err
	}
	if err := reg.Bind(registry.KindProcessor, KindTrim, func(fragment registry.Fragment) (any, error) {
		return NewTrim(fragment)
	}); err != nil {
		return err
	}
	if err := reg.Bind(registry.KindProcessor, KindLower, func(fragment registry.Fragment) (any, error) {
		return NewLower(fragment)
	}); err != nil {
		return err
	}
	return reg.Bind(registry.KindProcessor, KindUpper, func(fragment registry.Fragment) (any, error) {
		return NewUpper(fragment)
	})
}
