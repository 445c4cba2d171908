// Package memory is the in-process storage backend, used for single-node
// runs and tests.
package memory

import (
	"context"
	"sync"
	"time"
	"user-onboarding/internal/models"
	"user-onboarding/internal/storage"
)

type deadLetterEntry struct {
	record    *models.DeadLetterRecord
	expiresAt time.Time
}

// Store keeps users and dead letters in maps guarded by a RWMutex.
type Store struct {
	mu          sync.RWMutex
	users       map[string]models.EnrichedUser
	deadLetters map[string]deadLetterEntry
	now         func() time.Time
}

// NewStore creates an empty memory store
func NewStore() *Store {
	return &Store{
		users:       make(map[string]models.EnrichedUser),
		deadLetters: make(map[string]deadLetterEntry),
		now:         time.Now,
	}
}

var _ storage.Backend = (*Store)(nil)

// Name returns the backend name
func (s *Store) Name() string {
	return "memory"
}

// Put stores a copy of user under employeeID
func (s *Store) Put(ctx context.Context, employeeID string, user *models.EnrichedUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[employeeID] = cloneUser(user)
	return nil
}

// Get returns a copy of the stored user or storage.ErrNotFound
func (s *Store) Get(ctx context.Context, employeeID string) (*models.EnrichedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[employeeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := cloneUser(&user)
	return &out, nil
}

// Record stores rec keyed by correlation id unless a live entry exists
func (s *Store) Record(ctx context.Context, rec *models.DeadLetterRecord, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.deadLetters[rec.CorrelationID]; ok && !existing.expired(now) {
		return false, nil
	}

	entry := deadLetterEntry{record: rec}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.deadLetters[rec.CorrelationID] = entry
	return true, nil
}

// Lookup returns the dead letter recorded for correlationID
func (s *Store) Lookup(ctx context.Context, correlationID string) (*models.DeadLetterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.deadLetters[correlationID]
	if !ok || entry.expired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return entry.record, nil
}

// Health always succeeds
func (s *Store) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func (e deadLetterEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func cloneUser(user *models.EnrichedUser) models.EnrichedUser {
	out := *user
	out.Groups = append([]string(nil), user.Groups...)
	out.Applications = append([]string(nil), user.Applications...)
	return out
}
