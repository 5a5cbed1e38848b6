package extractor

import (
	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// Registry keys used to bind the three std Extractor kinds.
const (
	KindJSONPath = "jsonpath"
	KindXPath    = "xpath"
	KindRegex    = "regex"
)

// Register binds every std Extractor kind into reg.
func Register(reg *registry.Registry, log *logging.Logger) error {
	if err := reg.Bind(registry.KindExtractor, KindJSONPath, func(fragment registry.Fragment) (any, error) {
		return NewJSONPath(fragment, log)
	}); err != nil {
		return err
	}
	if err := reg.Bind(registry.KindExtractor, KindXPath, func(fragment registry.Fragment) (any, error) {
		return NewXPath(fragment, log)
	}); err != nil {
		return err
	}
	return reg.Bind(registry.KindExtractor, KindRegex, func(fragment registry.Fragment) (any, error) {
		return NewRegex(fragment, log)
	})
}
