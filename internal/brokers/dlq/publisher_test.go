package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
	"user-onboarding/internal/brokers"
	"user-onboarding/internal/brokers/testutil"
	apperrors "user-onboarding/internal/common/errors"
	"user-onboarding/internal/models"
	"user-onboarding/internal/storage"
	"user-onboarding/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *models.DeadLetterRecord {
	raw := []byte(`{"employee_id":"E404","correlation_id":"corr-9"}`)
	return models.NewDeadLetterRecord(raw, "corr-9", "E404", "NotFound", "directory user not found", 1,
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

type brokenIndex struct{}

func (brokenIndex) Record(context.Context, *models.DeadLetterRecord, time.Duration) (bool, error) {
	return false, apperrors.StoreError("down", nil)
}

func (brokenIndex) Lookup(context.Context, string) (*models.DeadLetterRecord, error) {
	return nil, apperrors.StoreError("down", nil)
}

func TestPublisher_Publish(t *testing.T) {
	broker := testutil.NewRecordingPublisher(0)
	index := memory.NewStore()
	p := NewPublisher(broker, index, Config{TTL: time.Hour}, nil, nil)

	rec := sampleRecord()
	require.NoError(t, p.Publish(context.Background(), rec))

	msgs := broker.Messages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, DefaultTopic, msg.Topic)
	assert.Equal(t, []byte("E404"), msg.Key)
	assert.Equal(t, "corr-9", msg.Headers[brokers.HeaderCorrelationID])
	assert.Equal(t, "NotFound", msg.Headers[brokers.HeaderErrorKind])

	var decoded models.DeadLetterRecord
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, 1, decoded.AttemptCount)
	assert.JSONEq(t, `{"employee_id":"E404","correlation_id":"corr-9"}`, string(decoded.OriginalRequest))

	indexed, err := p.Lookup(context.Background(), "corr-9")
	require.NoError(t, err)
	assert.Equal(t, "E404", indexed.EmployeeID)
}

func TestPublisher_DedupByCorrelationID(t *testing.T) {
	broker := testutil.NewRecordingPublisher(0)
	p := NewPublisher(broker, memory.NewStore(), Config{}, nil, nil)

	require.NoError(t, p.Publish(context.Background(), sampleRecord()))
	require.NoError(t, p.Publish(context.Background(), sampleRecord()))

	assert.Len(t, broker.Messages(), 1)
}

func TestPublisher_BrokerFailureIsNotIndexed(t *testing.T) {
	broker := testutil.NewRecordingPublisher(1)
	index := memory.NewStore()
	p := NewPublisher(broker, index, Config{}, nil, nil)

	err := p.Publish(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBrokerUnavailable))

	_, err = index.Lookup(context.Background(), "corr-9")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, p.Publish(context.Background(), sampleRecord()))
	assert.Len(t, broker.Messages(), 1)
}

func TestPublisher_IndexUnavailable(t *testing.T) {
	broker := testutil.NewRecordingPublisher(0)
	p := NewPublisher(broker, brokenIndex{}, Config{Topic: "custom.dlq"}, nil, nil)

	require.NoError(t, p.Publish(context.Background(), sampleRecord()))
	require.Len(t, broker.Messages(), 1)
	assert.Equal(t, "custom.dlq", broker.Messages()[0].Topic)
}

func TestPublisher_NoIndex(t *testing.T) {
	p := NewPublisher(testutil.NewRecordingPublisher(0), nil, Config{}, nil, nil)

	_, err := p.Lookup(context.Background(), "corr-9")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
