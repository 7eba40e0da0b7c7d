package providers

import (
	"fmt"
	"jamsync/internal/structures"

	"github.com/gookit/validate"
)

// CnfValidator runs the struct-tag validation rules declared on the config
// types.
type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %s", v.Errors.One())
	}
	return nil
}
