package validation

import (
	"fmt"
	"strings"
	"user-onboarding/internal/common/errors"
)

// FluentValidator accumulates checks on plain values, used for configuration
type FluentValidator struct {
	centralizedValidator *CentralizedValidator
	errors               []ValidationError
	prefix               string
}

// NewFluentValidatorWithPrefix creates a fluent validator with error prefix
func NewFluentValidatorWithPrefix(prefix string) *FluentValidator {
	return &FluentValidator{
		centralizedValidator: NewCentralizedValidator(),
		errors:               make([]ValidationError, 0),
		prefix:               prefix,
	}
}

// RequireString validates that a string is not empty (trimmed)
func (fv *FluentValidator) RequireString(value, name string) *FluentValidator {
	if strings.TrimSpace(value) == "" {
		fv.addError(name, "required", value, fmt.Sprintf("%s is required", name))
	}
	return fv
}

// RequirePositive validates that an integer is positive
func (fv *FluentValidator) RequirePositive(value int, name string) *FluentValidator {
	if err := fv.centralizedValidator.ValidateVar(value, "min=1"); err != nil {
		fv.addError(name, "min", fmt.Sprintf("%d", value), fmt.Sprintf("%s must be positive", name))
	}
	return fv
}

// RequireURL validates that a string is a valid URL
func (fv *FluentValidator) RequireURL(value, name string) *FluentValidator {
	if err := fv.centralizedValidator.ValidateVar(value, "required,url"); err != nil {
		fv.addError(name, "url", value, fmt.Sprintf("%s must be a valid URL", name))
	}
	return fv
}

// RequireOneOf validates that a value is one of the allowed values
func (fv *FluentValidator) RequireOneOf(value string, allowed []string, name string) *FluentValidator {
	tag := fmt.Sprintf("required,oneof=%s", strings.Join(allowed, " "))
	if err := fv.centralizedValidator.ValidateVar(value, tag); err != nil {
		fv.addError(name, "oneof", value, fmt.Sprintf("%s must be one of: %s", name, strings.Join(allowed, ", ")))
	}
	return fv
}

// ValidateIf runs a validation function if a condition is true
func (fv *FluentValidator) ValidateIf(condition bool, fn func() error) *FluentValidator {
	if condition {
		if err := fn(); err != nil {
			fv.addError("custom", "custom", "", err.Error())
		}
	}
	return fv
}

// HasErrors returns true if there are validation errors
func (fv *FluentValidator) HasErrors() bool {
	return len(fv.errors) > 0
}

// Error returns the accumulated failures as one Configuration error, or nil.
func (fv *FluentValidator) Error() error {
	if !fv.HasErrors() {
		return nil
	}

	messages := make([]string, len(fv.errors))
	for i, e := range fv.errors {
		messages[i] = e.Message
	}

	return errors.ConfigError(strings.Join(messages, "; "))
}

// addError adds a validation error with optional prefix
func (fv *FluentValidator) addError(field, tag, value, message string) {
	if fv.prefix != "" {
		message = fmt.Sprintf("%s: %s", fv.prefix, message)
		field = fmt.Sprintf("%s.%s", fv.prefix, field)
	}

	fv.errors = append(fv.errors, ValidationError{
		Field:   field,
		Tag:     tag,
		Value:   value,
		Message: message,
	})
}
