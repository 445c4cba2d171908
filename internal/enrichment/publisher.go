package enrichment

import (
	"context"
	stderrors "errors"
	"time"
	"user-onboarding/internal/brokers"
	"user-onboarding/internal/common/errors"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/metrics"
	"user-onboarding/internal/models"
)

// DefaultTopic is the enrichment request topic
const DefaultTopic = "user.enrichment.requested"

// PublisherConfig holds producer-side settings
type PublisherConfig struct {
	Topic string
	// Timeout bounds a single publish, acknowledgement included
	Timeout time.Duration
}

// DefaultPublisherConfig returns the default topic and a 5s publish timeout
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Topic:   DefaultTopic,
		Timeout: 5 * time.Second,
	}
}

// Publisher queues enrichment requests for the workers
type Publisher struct {
	publisher brokers.Publisher
	config    PublisherConfig
	logger    logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewPublisher creates a request publisher over a broker publisher
func NewPublisher(publisher brokers.Publisher, config PublisherConfig, logger logging.Logger, m *metrics.Metrics) *Publisher {
	defaults := DefaultPublisherConfig()
	if config.Topic == "" {
		config.Topic = defaults.Topic
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{
		publisher: publisher,
		config:    config,
		logger:    logger.WithFields(logging.String("component", "publisher")),
		metrics:   m,
		now:       time.Now,
	}
}

// Enqueue wraps payload in a new request and publishes it.
func (p *Publisher) Enqueue(ctx context.Context, payload models.HRPayload, correlationID string) (*models.EnrichmentRequest, error) {
	return p.Publish(ctx, models.NewEnrichmentRequest(payload, correlationID, p.now()))
}

// Publish validates req and writes it keyed by employee id. It returns the
// published copy, stamped with EnqueuedAt when req had none. It returns once
// the broker has acknowledged the write. Broker failures and timeouts match
// errors.ErrBrokerUnavailable; an invalid request is a Validation error.
func (p *Publisher) Publish(ctx context.Context, req *models.EnrichmentRequest) (*models.EnrichmentRequest, error) {
	if req == nil {
		return nil, errors.ValidationError("enrichment request is required")
	}
	// the caller's request is left untouched; only the copy is stamped
	out := *req
	if out.EnqueuedAt.IsZero() {
		out.EnqueuedAt = p.now().UTC()
	}
	if err := out.Validate(); err != nil {
		p.metrics.IncPublished("invalid")
		return nil, err
	}

	body, err := out.Encode()
	if err != nil {
		p.metrics.IncPublished("failed")
		return nil, err
	}

	logger := p.logger.WithContext(logging.ContextWithCorrelationID(ctx, out.CorrelationID)).
		WithFields(logging.String("employee", logging.HashID(out.EmployeeID)))

	publishCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	msg := &brokers.Message{
		Topic: p.config.Topic,
		Key:   []byte(out.EmployeeID),
		Headers: map[string]string{
			brokers.HeaderCorrelationID: out.CorrelationID,
			brokers.HeaderContentType:   "application/json",
		},
		Body:      body,
		Timestamp: out.EnqueuedAt,
	}

	if err := p.publisher.Publish(publishCtx, msg); err != nil {
		p.metrics.IncPublished("failed")
		logger.Error("Failed to publish enrichment request", err, logging.String("topic", p.config.Topic))
		if !stderrors.Is(err, errors.ErrBrokerUnavailable) {
			err = errors.BrokerUnavailableError("failed to publish enrichment request", err)
		}
		return nil, err
	}

	p.metrics.IncPublished("published")
	logger.Info("Enrichment request queued", logging.String("topic", p.config.Topic))
	return &out, nil
}
