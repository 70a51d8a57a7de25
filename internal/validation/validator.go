// Package validation adapts go-playground/validator to the echo validation
// interface, mapping tag failures to domain validation errors.
package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/fieldsync"
)

// Validator provides declarative struct validation for request payloads.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// Validate implements echo.Validator. Tag failures come back as an EINVALID
// error carrying per-field messages.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fieldsync.Internal("validating request", err)
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[strings.ToLower(fe.Field())] = messageForTag(fe)
	}
	return fieldsync.ErrorWithFields(fields)
}

// messageForTag renders a user-facing message for one tag failure.
func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "uuid":
		return "Must be a valid UUID."
	case "min":
		return "Value is too small."
	case "max":
		return "Value is too large."
	case "oneof":
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value."
	}
}
