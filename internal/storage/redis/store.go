// Package redis is the Redis storage backend. Users are JSON values under
// <prefix><employee_id>; dead letters under dead_letter:<prefix><correlation_id>,
// outside the user key space so no employee id can address them.
package redis

import (
	"context"
	"fmt"
	"time"
	"user-onboarding/internal/common/errors"
	"user-onboarding/internal/models"
	redisclient "user-onboarding/internal/redis"
	"user-onboarding/internal/storage"
)

// DefaultKeyPrefix is used when no prefix is configured
const DefaultKeyPrefix = "user_onboarding:"

// DeadLetterNamespace leads every dead-letter key. A prefix that is itself a
// prefix of DeadLetterNamespace+prefix would put both key spaces back together;
// config validation rejects such prefixes.
const DeadLetterNamespace = "dead_letter:"

// Store implements storage.Backend on top of the shared Redis client
type Store struct {
	client *redisclient.Client
	prefix string
}

var _ storage.Backend = (*Store)(nil)

// NewStore wraps a connected client
func NewStore(client *redisclient.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Name returns the backend name
func (s *Store) Name() string {
	return "redis"
}

func (s *Store) userKey(employeeID string) string {
	return s.prefix + employeeID
}

func (s *Store) deadLetterKey(correlationID string) string {
	return DeadLetterNamespace + s.prefix + correlationID
}

// Put overwrites the user record
func (s *Store) Put(ctx context.Context, employeeID string, user *models.EnrichedUser) error {
	if err := s.client.SetJSON(ctx, s.userKey(employeeID), user, 0); err != nil {
		return errors.StoreError("failed to write user", err).WithContext("backend", "redis")
	}
	return nil
}

// Get loads the user record or returns storage.ErrNotFound
func (s *Store) Get(ctx context.Context, employeeID string) (*models.EnrichedUser, error) {
	var user models.EnrichedUser
	if err := s.client.GetJSON(ctx, s.userKey(employeeID), &user); err != nil {
		if redisclient.IsNil(err) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.StoreError("failed to read user", err).WithContext("backend", "redis")
	}
	return &user, nil
}

// Record stores the dead letter with SET NX so redeliveries keep the first record
func (s *Store) Record(ctx context.Context, rec *models.DeadLetterRecord, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNXJSON(ctx, s.deadLetterKey(rec.CorrelationID), rec, ttl)
	if err != nil {
		return false, errors.StoreError(fmt.Sprintf("failed to index dead letter %s", rec.CorrelationID), err)
	}
	return created, nil
}

// Lookup returns the indexed dead letter for correlationID
func (s *Store) Lookup(ctx context.Context, correlationID string) (*models.DeadLetterRecord, error) {
	var rec models.DeadLetterRecord
	if err := s.client.GetJSON(ctx, s.deadLetterKey(correlationID), &rec); err != nil {
		if redisclient.IsNil(err) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.StoreError("failed to read dead letter", err)
	}
	return &rec, nil
}

// Health pings Redis
func (s *Store) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
