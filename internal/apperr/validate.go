package apperr

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field names using their JSON tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Check validates input against its `validate` tags and returns a validation error
// listing every failing field, or nil.
func Check(input any) error {
	if errValidate := validate.Struct(input); errValidate != nil {
		return FromValidator(errValidate)
	}
	return nil
}
