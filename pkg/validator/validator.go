// Package validator wraps go-playground/validator so configuration and API
// payloads can be checked declaratively with `validate` struct tags.
package validator

import (
	"errors"
	"fmt"
	"reflect"

	gvalidator "github.com/go-playground/validator/v10"
)

// ErrValidationFailed is the first error in the joined chain returned by
// Validate when any field fails its rules.
var ErrValidationFailed = errors.New("validation failed")

var validator *gvalidator.Validate

// Example: "'rpc_url': value 'x' does not meet the requirements for the 'url' validation"
const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

// errSecretFormat omits the value of fields tagged `secret:"true"`.
const errSecretFormat = "'%s': value does not meet the requirements for the '%s' validation"

func init() {
	validator = gvalidator.New(gvalidator.WithRequiredStructEnabled())
	validator.RegisterTagNameFunc(jsonFieldName)
}

func formatError(t reflect.Type, err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := []error{ErrValidationFailed}
	for _, validationErr := range validationErrors {
		if isSecret(t, validationErr.StructNamespace()) {
			errs = append(errs, fmt.Errorf(errSecretFormat, validationErr.Field(), validationErr.Tag()))
			continue
		}
		errs = append(errs, fmt.Errorf(errStringFormat,
			validationErr.Field(),
			validationErr.Value(),
			validationErr.Tag(),
		))
	}
	return errors.Join(errs...)
}

// Validate checks v against its validation tags. Field names in messages use
// the json tag when one is present.
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		return formatError(reflect.TypeOf(v), err)
	}
	return nil
}
