package config

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance lazily builds the shared struct-tag validator, mirroring
// internal/config/validator_instance.go's singleton.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New()
	})
	return validateInst
}

// RunOptions are the CLI's run_forever parameters (--num-batches,
// --min-wait-sec, --max-wait-sec), struct-tag validated before a Batch
// starts running.
type RunOptions struct {
	NumBatches int `validate:"min=-1"`
	MinWaitSec int `validate:"min=0"`
	MaxWaitSec int `validate:"gtefield=MinWaitSec"`
}

// ValidateRunOptions reports the first struct-tag violation in opts, if any.
func ValidateRunOptions(opts RunOptions) error {
	return validatorInstance().Struct(opts)
}
