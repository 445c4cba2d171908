// Package handlers implements the HTTP surface: the HR webhook that queues
// enrichment requests and the read endpoints for users and dead letters.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/models"
)

// RequestPublisher queues an enrichment request
type RequestPublisher interface {
	Enqueue(ctx context.Context, payload models.HRPayload, correlationID string) (*models.EnrichmentRequest, error)
}

// UserReader reads enriched users
type UserReader interface {
	Get(ctx context.Context, employeeID string) (*models.EnrichedUser, error)
}

// DeadLetterReader reads dead letters by correlation id
type DeadLetterReader interface {
	Lookup(ctx context.Context, correlationID string) (*models.DeadLetterRecord, error)
}

// HealthCheck is a named dependency probe
type HealthCheck func(ctx context.Context) error

// HealthInfo describes the static parts of the health response
type HealthInfo struct {
	Mode                string
	StorageBackend      string
	DirectoryConfigured bool
}

// Handlers holds the collaborators of the HTTP endpoints. Any of publisher,
// users or deadLetters may be nil; the matching endpoint then answers 503.
type Handlers struct {
	publisher   RequestPublisher
	users       UserReader
	deadLetters DeadLetterReader
	info        HealthInfo
	checks      map[string]HealthCheck
	logger      logging.Logger
	now         func() time.Time
}

// New creates the handlers
func New(publisher RequestPublisher, users UserReader, deadLetters DeadLetterReader, info HealthInfo, checks map[string]HealthCheck, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handlers{
		publisher:   publisher,
		users:       users,
		deadLetters: deadLetters,
		info:        info,
		checks:      checks,
		logger:      logger.WithFields(logging.String("component", "handlers")),
		now:         time.Now,
	}
}

// errorResponse is the body of every non-2xx answer
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
