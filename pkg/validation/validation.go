// Package validation checks command structs against their `validate` tags and
// reports failures as VALIDATION_ERROR with per-field details.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// Struct validates s. A nil return means every tag passed.
func Struct(s any) error {
	if err := validate.Struct(s); err != nil {
		return FormatErrors(err)
	}
	return nil
}

// FormatErrors converts validator output into a typed validation error whose
// details map each failing field path to a readable reason.
func FormatErrors(err error) *pkgerrors.Error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fields))
	for _, fe := range fields {
		details[fieldPath(fe)] = reason(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// fieldPath drops the root struct name so nested lines read as items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

var reasons = map[string]string{
	"min":   "must be at least %s",
	"gte":   "must be at least %s",
	"max":   "must be at most %s",
	"lte":   "must be at most %s",
	"gt":    "must be greater than %s",
	"ne":    "must not equal %s",
	"oneof": "must be one of [%s]",
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	}
	if tmpl, ok := reasons[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Param())
	}
	return "is invalid"
}
