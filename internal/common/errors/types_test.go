package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name: "basic error",
			appError: &AppError{
				Type:    ErrTypeConfig,
				Message: "directory token is missing",
			},
			want: "Configuration: directory token is missing",
		},
		{
			name: "error with code",
			appError: &AppError{
				Type:    ErrTypeAPI,
				Message: "directory returned an error",
				Code:    "503",
			},
			want: "API: directory returned an error: code=503",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeConnection,
				Message: "directory connection failed",
				Cause:   errors.New("connection refused"),
			},
			want: "Connection: directory connection failed: cause=connection refused",
		},
		{
			name: "error with context is rendered in key order",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "field validation failed",
				Context: map[string]interface{}{
					"value": "invalid",
					"field": "email",
				},
			},
			want: "Validation: field validation failed: context={field=email, value=invalid}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			if got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	appError := APIError("wrapper error", cause)

	if !errors.Is(appError, cause) {
		t.Errorf("errors.Is(appError, cause) = false, want true")
	}

	if ConfigError("no cause").Unwrap() != nil {
		t.Errorf("Unwrap() without cause should be nil")
	}
}

func TestAppError_WithContext(t *testing.T) {
	appError := ValidationError("validation failed")

	result := appError.WithContext("field", "employee_id")
	if result != appError {
		t.Error("WithContext should return the same instance")
	}
	if appError.Context["field"] != "employee_id" {
		t.Errorf("Context[field] = %v, want employee_id", appError.Context["field"])
	}

	appError.WithCode("E001")
	if appError.Code != "E001" {
		t.Errorf("Code = %v, want E001", appError.Code)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"not found", NotFoundError("directory user"), Terminal},
		{"configuration", ConfigError("missing token"), Terminal},
		{"validation", ValidationError("missing email"), Terminal},
		{"api", APIError("directory returned 503", nil), Transient},
		{"timeout", TimeoutError("resolve user", nil), Transient},
		{"rate limit", RateLimitError("directory"), Transient},
		{"connection", ConnectionError("dial failed", nil), Transient},
		{"store", StoreError("redis set failed", nil), Transient},
		{"wrapped terminal", fmt.Errorf("fetch: %w", NotFoundError("directory user")), Terminal},
		{"plain error", errors.New("boom"), Transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetType(t *testing.T) {
	if got := GetType(nil); got != "" {
		t.Errorf("GetType(nil) = %q, want empty", got)
	}
	if got := GetType(errors.New("plain")); got != ErrTypeInternal {
		t.Errorf("GetType(plain) = %q, want %q", got, ErrTypeInternal)
	}
	wrapped := fmt.Errorf("outer: %w", RateLimitError("directory"))
	if got := GetType(wrapped); got != ErrTypeRateLimit {
		t.Errorf("GetType(wrapped) = %q, want %q", got, ErrTypeRateLimit)
	}
	if !IsType(wrapped, ErrTypeRateLimit) {
		t.Errorf("IsType(wrapped, RateLimit) = false, want true")
	}
	if IsType(wrapped, ErrTypeAPI) {
		t.Errorf("IsType(wrapped, API) = true, want false")
	}
}

func TestErrBrokerUnavailable(t *testing.T) {
	err := fmt.Errorf("publish: %w", BrokerUnavailableError("delivery timed out", errors.New("deadline")))

	if !errors.Is(err, ErrBrokerUnavailable) {
		t.Errorf("errors.Is(err, ErrBrokerUnavailable) = false, want true")
	}
	if errors.Is(APIError("other", nil), ErrBrokerUnavailable) {
		t.Errorf("API error must not match ErrBrokerUnavailable")
	}
}

func TestClass_String(t *testing.T) {
	if Terminal.String() != "terminal" || Transient.String() != "transient" {
		t.Errorf("unexpected class names %q %q", Terminal, Transient)
	}
}
