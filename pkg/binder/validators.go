package binder

import (
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// abspathValidator ensures the value is an absolute filesystem path or the
// empty string. The empty string is allowed so the validator composes with
// omitempty; add required to the validate tag to disallow it.
func abspathValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return filepath.IsAbs(value)
}
