// Package brokers defines the broker-neutral message types shared by the
// Kafka transport and the dead-letter publisher.
package brokers

import (
	"context"
	"time"
)

// Header names carried on every enrichment and dead-letter message
const (
	HeaderCorrelationID = "correlation_id"
	HeaderErrorKind     = "error_kind"
	HeaderContentType   = "content-type"
)

// Message is an outgoing record
type Message struct {
	Topic     string
	Key       []byte
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
}

// Publisher writes a message and returns once the broker has acknowledged
// it. Failures match errors.ErrBrokerUnavailable.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
	Close() error
}
