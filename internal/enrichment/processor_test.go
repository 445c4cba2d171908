package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
	"user-onboarding/internal/brokers"
	"user-onboarding/internal/brokers/dlq"
	"user-onboarding/internal/brokers/testutil"
	apperrors "user-onboarding/internal/common/errors"
	"user-onboarding/internal/common/retry"
	"user-onboarding/internal/models"
	"user-onboarding/internal/storage"
	"user-onboarding/internal/storage/memory"
	"user-onboarding/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu          sync.Mutex
	byEmail     []string
	byNumber    []string
	user        *models.DirectoryUser
	errs        []error
	defaultFail error
}

func (f *fakeFetcher) next() (*models.DirectoryUser, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	} else if f.defaultFail != nil {
		return nil, f.defaultFail
	}
	return f.user, nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, email string) (*models.DirectoryUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byEmail = append(f.byEmail, email)
	return f.next()
}

func (f *fakeFetcher) FetchByEmployeeNumber(ctx context.Context, number string) (*models.DirectoryUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byNumber = append(f.byNumber, number)
	return f.next()
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail) + len(f.byNumber)
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	// failAfter makes the nth sleep report cancellation; zero never fails
	failAfter int
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	if s.failAfter > 0 && len(s.delays) >= s.failAfter {
		return context.Canceled
	}
	return ctx.Err()
}

type harness struct {
	fetcher *fakeFetcher
	store   *memory.Store
	broker  *testutil.RecordingPublisher
	dlq     *dlq.Publisher
	sleeper *sleepRecorder
	proc    *Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fetcher: &fakeFetcher{user: directoryUser()},
		store:   memory.NewStore(),
		broker:  testutil.NewRecordingPublisher(0),
		sleeper: &sleepRecorder{},
	}
	h.dlq = dlq.NewPublisher(h.broker, h.store, dlq.Config{TTL: time.Hour}, nil, nil)
	h.proc = NewProcessor(h.fetcher, h.store, h.dlq, DefaultProcessorConfig(), nil, nil,
		WithRetryOptions(retry.WithSleep(h.sleeper.sleep)),
		WithClock(func() time.Time { return time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC) }),
	)
	return h
}

func requestRecord(t *testing.T, payload models.HRPayload, correlationID string) worker.Record {
	t.Helper()
	req := models.NewEnrichmentRequest(payload, correlationID, time.Date(2024, 2, 1, 7, 59, 0, 0, time.UTC))
	body, err := req.Encode()
	require.NoError(t, err)
	return worker.Record{
		Topic:     DefaultTopic,
		Partition: 2,
		Offset:    41,
		Key:       []byte(payload.EmployeeID),
		Value:     body,
		Headers:   map[string]string{brokers.HeaderCorrelationID: correlationID},
	}
}

func (h *harness) deadLetters(t *testing.T) []models.DeadLetterRecord {
	t.Helper()
	var out []models.DeadLetterRecord
	for _, msg := range h.broker.Messages() {
		var rec models.DeadLetterRecord
		require.NoError(t, json.Unmarshal(msg.Body, &rec))
		out = append(out, rec)
	}
	return out
}

func TestProcessor_StoresEnrichedUser(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.proc.Handle(context.Background(), requestRecord(t, janeDoe(), "corr-1")))

	got, err := h.store.Get(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", got.ID)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, []string{"g1", "g2", "g3"}, got.Groups)
	assert.Equal(t, []string{"a1", "a2"}, got.Applications)
	assert.True(t, got.Onboarded)

	assert.Equal(t, []string{"jane.doe@example.com"}, h.fetcher.byEmail)
	assert.Empty(t, h.broker.Messages())
	assert.Empty(t, h.sleeper.delays)
}

func TestProcessor_Idempotent(t *testing.T) {
	h := newHarness(t)
	rec := requestRecord(t, janeDoe(), "corr-1")

	require.NoError(t, h.proc.Handle(context.Background(), rec))
	first, err := h.store.Get(context.Background(), "12345")
	require.NoError(t, err)

	require.NoError(t, h.proc.Handle(context.Background(), rec))
	second, err := h.store.Get(context.Background(), "12345")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProcessor_NotFoundIsDeadLetteredOnce(t *testing.T) {
	h := newHarness(t)
	h.fetcher.defaultFail = apperrors.NotFoundError("directory user")

	require.NoError(t, h.proc.Handle(context.Background(), requestRecord(t, janeDoe(), "corr-404")))

	assert.Equal(t, 1, h.fetcher.calls())
	_, err := h.store.Get(context.Background(), "12345")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records := h.deadLetters(t)
	require.Len(t, records, 1)
	assert.Equal(t, "NotFound", records[0].ErrorKind)
	assert.Equal(t, 1, records[0].AttemptCount)
	assert.Equal(t, "corr-404", records[0].CorrelationID)
	assert.Equal(t, "12345", records[0].EmployeeID)

	original, err := records[0].Request()
	require.NoError(t, err)
	assert.Equal(t, "corr-404", original.CorrelationID)

	msg := h.broker.Messages()[0]
	assert.Equal(t, dlq.DefaultTopic, msg.Topic)
	assert.Equal(t, "corr-404", msg.Headers[brokers.HeaderCorrelationID])
	assert.Equal(t, "NotFound", msg.Headers[brokers.HeaderErrorKind])
}

func TestProcessor_TransientExhaustion(t *testing.T) {
	h := newHarness(t)
	h.fetcher.defaultFail = apperrors.TimeoutError("resolve user", context.DeadlineExceeded)

	require.NoError(t, h.proc.Handle(context.Background(), requestRecord(t, janeDoe(), "corr-slow")))

	assert.Equal(t, 3, h.fetcher.calls())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.sleeper.delays)

	records := h.deadLetters(t)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].AttemptCount)
	assert.Equal(t, "Timeout", records[0].ErrorKind)
}

func TestProcessor_RecoversFromTransientFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.errs = []error{apperrors.APIError("directory returned 503", nil)}

	require.NoError(t, h.proc.Handle(context.Background(), requestRecord(t, janeDoe(), "corr-1")))

	assert.Equal(t, 2, h.fetcher.calls())
	assert.Equal(t, []time.Duration{2 * time.Second}, h.sleeper.delays)
	_, err := h.store.Get(context.Background(), "12345")
	assert.NoError(t, err)
	assert.Empty(t, h.broker.Messages())
}

func TestProcessor_FallsBackToEmployeeNumber(t *testing.T) {
	h := newHarness(t)
	payload := janeDoe()
	payload.Email = ""

	require.NoError(t, h.proc.Handle(context.Background(), requestRecord(t, payload, "corr-1")))

	assert.Empty(t, h.fetcher.byEmail)
	assert.Equal(t, []string{"12345"}, h.fetcher.byNumber)
	got, err := h.store.Get(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@corp.example.com", got.Email)
}

func TestProcessor_UndecodableMessage(t *testing.T) {
	h := newHarness(t)
	rec := worker.Record{
		Topic:   DefaultTopic,
		Key:     []byte("12345"),
		Value:   []byte("not json"),
		Headers: map[string]string{brokers.HeaderCorrelationID: "corr-bad"},
	}

	require.NoError(t, h.proc.Handle(context.Background(), rec))

	assert.Zero(t, h.fetcher.calls())
	records := h.deadLetters(t)
	require.Len(t, records, 1)
	assert.Equal(t, "Validation", records[0].ErrorKind)
	assert.Equal(t, 1, records[0].AttemptCount)
	assert.Equal(t, "corr-bad", records[0].CorrelationID)
	assert.Equal(t, "12345", records[0].EmployeeID)
	assert.JSONEq(t, `"not json"`, string(records[0].OriginalRequest))
}

func TestProcessor_InvalidRequestUsesDecodedIdentifiers(t *testing.T) {
	h := newHarness(t)
	payload := janeDoe()
	payload.Email = "not-an-email"
	rec := requestRecord(t, payload, "corr-invalid")
	rec.Key = nil
	rec.Headers = nil

	require.NoError(t, h.proc.Handle(context.Background(), rec))

	records := h.deadLetters(t)
	require.Len(t, records, 1)
	assert.Equal(t, "corr-invalid", records[0].CorrelationID)
	assert.Equal(t, "12345", records[0].EmployeeID)
	assert.Equal(t, "Validation", records[0].ErrorKind)
}

func TestProcessor_DeadLetterPublishIsRetried(t *testing.T) {
	h := newHarness(t)
	h.fetcher.defaultFail = apperrors.NotFoundError("directory user")
	h.broker = testutil.NewRecordingPublisher(2)
	h.dlq = dlq.NewPublisher(h.broker, h.store, dlq.Config{}, nil, nil)
	h.proc.deadLetters = h.dlq

	require.NoError(t, h.proc.Handle(context.Background(), requestRecord(t, janeDoe(), "corr-1")))

	assert.Equal(t, 3, h.broker.Calls())
	assert.Len(t, h.broker.Messages(), 1)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.sleeper.delays)
}

func TestProcessor_DeadLetterFailureLeavesMessageUncommitted(t *testing.T) {
	h := newHarness(t)
	h.fetcher.defaultFail = apperrors.NotFoundError("directory user")
	h.broker.FailAlways()
	h.sleeper.failAfter = 3

	err := h.proc.Handle(context.Background(), requestRecord(t, janeDoe(), "corr-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBrokerUnavailable))
	assert.Equal(t, 3, h.broker.Calls())
}

func TestProcessor_CancelledDuringBackoff(t *testing.T) {
	h := newHarness(t)
	h.fetcher.defaultFail = apperrors.APIError("directory returned 503", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.proc.Handle(ctx, requestRecord(t, janeDoe(), "corr-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.broker.Messages())
	_, getErr := h.store.Get(context.Background(), "12345")
	assert.ErrorIs(t, getErr, storage.ErrNotFound)
}
