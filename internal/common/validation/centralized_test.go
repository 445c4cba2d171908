package validation

import (
	"testing"
	"user-onboarding/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	EmployeeID string `json:"employee_id" validate:"required,not_blank"`
	Email      string `json:"email" validate:"omitempty,email"`
	StartDate  string `json:"start_date" validate:"iso_date"`
}

func TestCentralizedValidator_ValidateStruct(t *testing.T) {
	v := NewCentralizedValidator()

	tests := []struct {
		name    string
		input   sample
		wantErr string
	}{
		{"valid", sample{EmployeeID: "E1", Email: "a@b.co", StartDate: "2024-01-15"}, ""},
		{"missing id", sample{}, "field 'employee_id' is required"},
		{"blank id", sample{EmployeeID: "   "}, "field 'employee_id' must not be blank"},
		{"bad email", sample{EmployeeID: "E1", Email: "nope"}, "field 'email' must be a valid email address"},
		{"bad date", sample{EmployeeID: "E1", StartDate: "15/01/2024"}, "field 'start_date' must be a date in YYYY-MM-DD form"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		})
	}
}

func TestCentralizedValidator_FieldErrors(t *testing.T) {
	v := NewCentralizedValidator()

	assert.Nil(t, v.FieldErrors(sample{EmployeeID: "E1"}))

	fieldErrs := v.FieldErrors(sample{Email: "bad"})
	require.Len(t, fieldErrs, 2)
	assert.Equal(t, "employee_id", fieldErrs[0].Field)
	assert.Equal(t, "email", fieldErrs[1].Field)
}

func TestFluentValidator(t *testing.T) {
	fv := NewFluentValidatorWithPrefix("config")
	fv.RequireString("", "DIRECTORY_BASE_URL").
		RequirePositive(0, "WORKER_LANE_BUFFER").
		RequireOneOf("disk", []string{"memory", "redis"}, "STORAGE_BACKEND").
		RequireURL("https://example.okta.com", "DIRECTORY_BASE_URL")

	require.True(t, fv.HasErrors())
	err := fv.Error()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	assert.Contains(t, err.Error(), "config: DIRECTORY_BASE_URL is required")
	assert.Contains(t, err.Error(), "config: WORKER_LANE_BUFFER must be positive")
	assert.Contains(t, err.Error(), "STORAGE_BACKEND must be one of: memory, redis")
	assert.NotContains(t, err.Error(), "must be a valid URL")

	assert.NoError(t, NewFluentValidatorWithPrefix("x").RequireString("ok", "name").Error())
}
