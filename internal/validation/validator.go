// Package validation wraps go-playground/validator for the engine's record
// types. A failed check comes back as a VALIDATION domain error whose details
// map field names to human-readable messages, keyed by JSON name so the ops
// API can surface them directly.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/channelbriefapp/channelbrief-engine/internal/errors"
)

// Validator checks record structs against their validate tags.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for the engine's records.
func New() *Validator {
	v := validator.New()

	// Report fields by their JSON name, not the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Validator{v: v}
}

// Validate checks a struct and returns a domain error on failure.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = message(fe)
	}
	return domainerrors.ValidationWithDetails("validation failed", details)
}

// message translates the validation tags the engine's records use. Anything
// else gets a generic message rather than leaking tag syntax to the UI.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must not exceed " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
