// Package storage defines the persistence contracts for enriched users and
// the dead-letter index. Backends live in the memory and redis subpackages.
package storage

import (
	"context"
	"time"
	"user-onboarding/internal/common/errors"
	"user-onboarding/internal/models"
)

// ErrNotFound is returned by Get and Lookup when no record exists.
// Match it with errors.Is.
var ErrNotFound = &errors.AppError{Type: errors.ErrTypeNotFound, Message: "record not found"}

// UserStore persists enriched users keyed by employee id.
type UserStore interface {
	// Put overwrites unconditionally; the last write wins.
	Put(ctx context.Context, employeeID string, user *models.EnrichedUser) error
	Get(ctx context.Context, employeeID string) (*models.EnrichedUser, error)
	Health(ctx context.Context) error
	Close() error
}

// DeadLetterIndex remembers published dead letters by correlation id. It
// doubles as the dedup key for redelivered messages.
type DeadLetterIndex interface {
	// Record stores rec unless a record with the same correlation id exists.
	// It reports whether rec was newly stored.
	Record(ctx context.Context, rec *models.DeadLetterRecord, ttl time.Duration) (bool, error)
	Lookup(ctx context.Context, correlationID string) (*models.DeadLetterRecord, error)
}

// Backend bundles both contracts, as every backend implements them together.
type Backend interface {
	UserStore
	DeadLetterIndex
	Name() string
}
