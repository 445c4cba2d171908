// Package kafka is the confluent-kafka-go transport: a Producer that
// satisfies brokers.Publisher and a Consumer that feeds the worker pool and
// commits offsets on its behalf.
package kafka

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"user-onboarding/internal/brokers"
	"user-onboarding/internal/common/errors"
	"user-onboarding/internal/common/logging"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// producerClient is the subset of *kafka.Producer the Producer uses
type producerClient interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	Close()
}

// Producer publishes messages and waits for the delivery report
type Producer struct {
	client    producerClient
	config    *Config
	logger    logging.Logger
	closeOnce sync.Once
	done      chan struct{}
}

var _ brokers.Publisher = (*Producer)(nil)

// NewProducer validates config and connects a producer
func NewProducer(config *Config, logger logging.Logger) (*Producer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Kafka config: %w", err)
	}

	client, err := kafka.NewProducer(config.ProducerConfigMap())
	if err != nil {
		return nil, errors.BrokerUnavailableError("failed to create Kafka producer", err)
	}

	return newProducer(client, config, logger), nil
}

func newProducer(client producerClient, config *Config, logger logging.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Producer{
		client: client,
		config: config,
		logger: logger.WithFields(logging.String("component", "kafka_producer")),
		done:   make(chan struct{}),
	}
	go p.drainEvents()
	return p
}

// drainEvents logs client-level events; delivery reports go to per-message channels.
func (p *Producer) drainEvents() {
	events := p.client.Events()
	for {
		select {
		case <-p.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if kerr, isErr := ev.(kafka.Error); isErr {
				p.logger.Warn("Kafka producer error",
					logging.String("code", kerr.Code().String()),
					logging.Err(kerr),
				)
			}
		}
	}
}

// Publish produces msg and blocks until the broker acknowledges it or ctx
// is done. Every failure matches errors.ErrBrokerUnavailable.
func (p *Producer) Publish(ctx context.Context, msg *brokers.Message) error {
	if msg == nil || msg.Topic == "" {
		return errors.BrokerUnavailableError("message topic is required", nil)
	}

	topic := msg.Topic
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:       msg.Key,
		Value:     msg.Body,
		Timestamp: msg.Timestamp,
		Headers:   toKafkaHeaders(msg.Headers),
	}

	delivery := make(chan kafka.Event, 1)
	if err := p.client.Produce(km, delivery); err != nil {
		return errors.BrokerUnavailableError("failed to produce message", err)
	}

	select {
	case <-ctx.Done():
		return errors.BrokerUnavailableError("delivery not confirmed in time", ctx.Err())
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return errors.BrokerUnavailableError(fmt.Sprintf("unexpected delivery event: %v", ev), nil)
		}
		if m.TopicPartition.Error != nil {
			return errors.BrokerUnavailableError("delivery failed", m.TopicPartition.Error)
		}
		p.logger.Debug("Message delivered",
			logging.String("topic", topic),
			logging.Int("partition", int(m.TopicPartition.Partition)),
			logging.Int64("offset", int64(m.TopicPartition.Offset)),
		)
		return nil
	}
}

// Health checks that broker metadata can be fetched
func (p *Producer) Health(ctx context.Context) error {
	timeout := p.config.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	metadata, err := p.client.GetMetadata(nil, false, int(timeout.Milliseconds()))
	if err != nil {
		return errors.BrokerUnavailableError("failed to get Kafka metadata", err)
	}
	if len(metadata.Brokers) == 0 {
		return errors.BrokerUnavailableError("no Kafka brokers available", nil)
	}
	return nil
}

// Close flushes outstanding messages and closes the producer
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		if remaining := p.client.Flush(int(p.config.PublishTimeout.Milliseconds())); remaining > 0 {
			p.logger.Warn("Kafka producer closed with undelivered messages", logging.Int("remaining", remaining))
		}
		close(p.done)
		p.client.Close()
	})
	return nil
}

// toKafkaHeaders sorts by key so identical maps produce identical records
func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(headers[k])})
	}
	return out
}
