package models

import (
	"encoding/json"
	"time"
)

// DeadLetterRecord describes a request that could not be enriched.
type DeadLetterRecord struct {
	// OriginalRequest is the consumed message value, byte for byte when it was
	// valid JSON, otherwise the raw bytes as a JSON string.
	OriginalRequest json.RawMessage `json:"original_request"`
	CorrelationID   string          `json:"correlation_id"`
	EmployeeID      string          `json:"employee_id"`
	ErrorKind       string          `json:"error_kind"`
	ErrorMessage    string          `json:"error_message"`
	AttemptCount    int             `json:"attempt_count"`
	FailedAt        time.Time       `json:"failed_at"`
}

// NewDeadLetterRecord wraps the consumed bytes with failure metadata.
func NewDeadLetterRecord(raw []byte, correlationID, employeeID, kind, message string, attempts int, failedAt time.Time) *DeadLetterRecord {
	original := json.RawMessage(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		quoted, _ := json.Marshal(string(raw))
		original = quoted
	}
	return &DeadLetterRecord{
		OriginalRequest: original,
		CorrelationID:   correlationID,
		EmployeeID:      employeeID,
		ErrorKind:       kind,
		ErrorMessage:    message,
		AttemptCount:    attempts,
		FailedAt:        failedAt.UTC(),
	}
}

// Request decodes the original request, if the stored bytes hold one.
func (d *DeadLetterRecord) Request() (*EnrichmentRequest, error) {
	var req EnrichmentRequest
	if err := json.Unmarshal(d.OriginalRequest, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
