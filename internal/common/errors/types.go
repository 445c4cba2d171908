package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType is the kind of a failure. The kind decides its Class.
type ErrorType string

const (
	// ErrTypeNotFound means the identity or record does not exist
	ErrTypeNotFound ErrorType = "NotFound"
	// ErrTypeConfig means credentials or base configuration are missing or rejected
	ErrTypeConfig ErrorType = "Configuration"
	// ErrTypeValidation means the request itself is malformed
	ErrTypeValidation ErrorType = "Validation"
	// ErrTypeAPI means the external API failed in a way that may succeed later
	ErrTypeAPI ErrorType = "API"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "Timeout"
	// ErrTypeRateLimit represents rate limit errors
	ErrTypeRateLimit ErrorType = "RateLimit"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "Connection"
	// ErrTypeStore represents a failed store read or write
	ErrTypeStore ErrorType = "Store"
	// ErrTypeBrokerUnavailable means the broker did not accept a write in time
	ErrTypeBrokerUnavailable ErrorType = "BrokerUnavailable"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "Internal"
)

// Class tells the retry controller whether another attempt can help.
type Class int

const (
	// Transient failures may succeed on a later attempt.
	Transient Class = iota
	// Terminal failures are never retried.
	Terminal
)

func (c Class) String() string {
	if c == Terminal {
		return "terminal"
	}
	return "transient"
}

// ErrBrokerUnavailable is matched with errors.Is by producer callers.
var ErrBrokerUnavailable = &AppError{Type: ErrTypeBrokerUnavailable, Message: "broker unavailable"}

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError of the same type, so errors.Is(err, ErrBrokerUnavailable)
// holds for every broker failure regardless of message or cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Type == e.Type
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// Class reports whether the error is terminal or transient.
func (e *AppError) Class() Class {
	switch e.Type {
	case ErrTypeNotFound, ErrTypeConfig, ErrTypeValidation:
		return Terminal
	default:
		return Transient
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// APIError creates a transient error for a failed external call
func APIError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeAPI,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
		Cause:   cause,
	}
}

// RateLimitError creates a new rate limit error
func RateLimitError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeRateLimit,
		Message: fmt.Sprintf("rate limit exceeded for %s", resource),
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// StoreError creates a transient error for a failed store operation
func StoreError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeStore,
		Message: msg,
		Cause:   cause,
	}
}

// BrokerUnavailableError wraps a producer failure so it matches ErrBrokerUnavailable
func BrokerUnavailableError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeBrokerUnavailable,
		Message: msg,
		Cause:   cause,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}

// Classify returns the class of err. Errors that are not AppErrors are
// treated as transient: an unknown failure is retried rather than dropped.
func Classify(err error) Class {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Class()
	}
	return Transient
}
