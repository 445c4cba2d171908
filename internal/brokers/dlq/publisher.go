// Package dlq publishes dead-letter records and indexes them by correlation
// id so redelivered failures are not dead-lettered twice.
package dlq

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"
	"user-onboarding/internal/brokers"
	"user-onboarding/internal/common/errors"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/metrics"
	"user-onboarding/internal/models"
	"user-onboarding/internal/storage"
)

// DefaultTopic is the dead-letter topic name
const DefaultTopic = "user.enrichment.failed"

// Publisher writes DeadLetterRecords to the dead-letter topic
type Publisher struct {
	publisher brokers.Publisher
	topic     string
	index     storage.DeadLetterIndex
	ttl       time.Duration
	logger    logging.Logger
	metrics   *metrics.Metrics
}

// Config holds dead-letter settings
type Config struct {
	Topic string
	// TTL bounds how long the correlation id index remembers a record
	TTL time.Duration
}

// NewPublisher creates a dead-letter publisher. index may be nil, which
// disables dedup and lookup.
func NewPublisher(publisher brokers.Publisher, index storage.DeadLetterIndex, config Config, logger logging.Logger, m *metrics.Metrics) *Publisher {
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{
		publisher: publisher,
		topic:     config.Topic,
		index:     index,
		ttl:       config.TTL,
		logger:    logger.WithFields(logging.String("component", "dlq")),
		metrics:   m,
	}
}

// Publish sends rec keyed by employee id with correlation_id and error_kind
// headers. A record already indexed under the same correlation id is skipped.
func (p *Publisher) Publish(ctx context.Context, rec *models.DeadLetterRecord) error {
	logger := p.logger.WithContext(logging.ContextWithCorrelationID(ctx, rec.CorrelationID))

	if p.alreadyPublished(ctx, rec, logger) {
		p.metrics.IncDeadLetterPublish("duplicate")
		return nil
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return errors.InternalError("failed to encode dead-letter record", err)
	}

	msg := &brokers.Message{
		Topic: p.topic,
		Key:   []byte(rec.EmployeeID),
		Headers: map[string]string{
			brokers.HeaderCorrelationID: rec.CorrelationID,
			brokers.HeaderErrorKind:     rec.ErrorKind,
			brokers.HeaderContentType:   "application/json",
		},
		Body:      body,
		Timestamp: rec.FailedAt,
	}

	if err := p.publisher.Publish(ctx, msg); err != nil {
		p.metrics.IncDeadLetterPublish("failed")
		logger.Error("Failed to publish dead letter", err,
			logging.String("error_kind", rec.ErrorKind),
		)
		return err
	}
	p.metrics.IncDeadLetterPublish("published")

	if p.index != nil {
		if _, err := p.index.Record(ctx, rec, p.ttl); err != nil {
			logger.Warn("Dead letter published but not indexed", logging.Err(err))
		}
	}

	logger.Info("Message sent to DLQ",
		logging.String("employee", logging.HashID(rec.EmployeeID)),
		logging.String("error_kind", rec.ErrorKind),
		logging.Int("attempts", rec.AttemptCount),
	)
	return nil
}

// Lookup returns the indexed record for correlationID
func (p *Publisher) Lookup(ctx context.Context, correlationID string) (*models.DeadLetterRecord, error) {
	if p.index == nil {
		return nil, storage.ErrNotFound
	}
	return p.index.Lookup(ctx, correlationID)
}

func (p *Publisher) alreadyPublished(ctx context.Context, rec *models.DeadLetterRecord, logger logging.Logger) bool {
	if p.index == nil || rec.CorrelationID == "" {
		return false
	}
	_, err := p.index.Lookup(ctx, rec.CorrelationID)
	switch {
	case err == nil:
		logger.Info("Dead letter already published, skipping")
		return true
	case stderrors.Is(err, storage.ErrNotFound):
		return false
	default:
		// A duplicate is preferable to losing the record
		logger.Warn("Dead-letter index unavailable, publishing anyway", logging.Err(err))
		return false
	}
}
