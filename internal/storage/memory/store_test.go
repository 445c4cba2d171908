package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"user-onboarding/internal/models"
	"user-onboarding/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Get(ctx, "E1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	user := &models.EnrichedUser{ID: "E1", Name: "Jane Doe", Groups: []string{"Engineering"}, Onboarded: true}
	require.NoError(t, s.Put(ctx, "E1", user))

	got, err := s.Get(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, user, got)

	// stored values are isolated from the caller's slices
	user.Groups[0] = "mutated"
	got, err = s.Get(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Engineering"}, got.Groups)
}

func TestStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Put(ctx, "E1", &models.EnrichedUser{ID: "E1", Title: "Engineer"}))
	require.NoError(t, s.Put(ctx, "E1", &models.EnrichedUser{ID: "E1", Title: "Senior Engineer"}))

	got, err := s.Get(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, "Senior Engineer", got.Title)
}

func TestStore_ConcurrentPut(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Put(ctx, "E1", &models.EnrichedUser{ID: "E1", Onboarded: true})
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "E1")
	require.NoError(t, err)
	assert.True(t, got.Onboarded)
}

func TestStore_DeadLetterIndex(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	rec := &models.DeadLetterRecord{CorrelationID: "c1", EmployeeID: "E1", ErrorKind: "NotFound"}

	created, err := s.Record(ctx, rec, time.Hour)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Record(ctx, &models.DeadLetterRecord{CorrelationID: "c1", ErrorKind: "API"}, time.Hour)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.Lookup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "NotFound", got.ErrorKind)

	now = now.Add(2 * time.Hour)
	_, err = s.Lookup(ctx, "c1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	created, err = s.Record(ctx, &models.DeadLetterRecord{CorrelationID: "c1", ErrorKind: "API"}, 0)
	require.NoError(t, err)
	assert.True(t, created)
}
