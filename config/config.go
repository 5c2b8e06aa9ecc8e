// Package config validates the configuration structs used by the
// generator and the burn-in harness, surfacing a single ConfigError kind per
// spec §7 rather than letting validation details leak as ad hoc errors
// from each package.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/tasklab/tasklab/internal/cerr"
)

// ErrConfig is the sentinel wrapped by every validation failure.
const ErrConfig cerr.Error = "config: invalid configuration"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation over cfg and returns a single
// ErrConfig-wrapped error naming every field that failed, so a caller sees the complete set of problems at once rather
// than being told about them one at a time across repeated calls.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("%w: %s", ErrConfig, err)
		}
		return fmt.Errorf("%w: %s", ErrConfig, describe(verrs))
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s failed %q constraint (value=%v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return msg
}
