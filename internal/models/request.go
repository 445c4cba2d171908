package models

import (
	"encoding/json"
	"fmt"
	"time"
	"user-onboarding/internal/common/errors"
)

// EnrichmentRequest is the message published to the enrichment topic. It is
// never mutated after publishing; retries and dead letters carry copies.
type EnrichmentRequest struct {
	EmployeeID    string    `json:"employee_id" validate:"required,not_blank"`
	CorrelationID string    `json:"correlation_id" validate:"required,not_blank"`
	HRPayload     HRPayload `json:"hr_payload"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// NewEnrichmentRequest builds a request keyed by the payload's employee id.
func NewEnrichmentRequest(payload HRPayload, correlationID string, now time.Time) *EnrichmentRequest {
	return &EnrichmentRequest{
		EmployeeID:    payload.EmployeeID,
		CorrelationID: correlationID,
		HRPayload:     payload,
		EnqueuedAt:    now.UTC(),
	}
}

// Validate checks the envelope and the embedded HR payload.
func (r *EnrichmentRequest) Validate() error {
	if err := validate.ValidateStruct(r); err != nil {
		return err
	}
	if r.HRPayload.EmployeeID != r.EmployeeID {
		return errors.ValidationError("hr_payload employee_id does not match request employee_id").
			WithContext("employee_id", r.EmployeeID)
	}
	return nil
}

// Encode returns the JSON wire form of the request.
func (r *EnrichmentRequest) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.InternalError("failed to encode enrichment request", err)
	}
	return data, nil
}

// DecodeEnrichmentRequest parses and validates a consumed message. Any
// failure is a Validation error, so the message is dead-lettered without retry.
// When the JSON parses but does not validate, the decoded request is returned
// with the error so its identifiers can still reach the dead-letter record.
func DecodeEnrichmentRequest(data []byte) (*EnrichmentRequest, error) {
	var req EnrichmentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("malformed enrichment request: %v", err))
	}
	if err := req.Validate(); err != nil {
		return &req, err
	}
	return &req, nil
}
