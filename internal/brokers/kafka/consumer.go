package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"user-onboarding/internal/common/errors"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/worker"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// consumerClient is the subset of *kafka.Consumer the Consumer uses
type consumerClient interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Poll(timeoutMs int) kafka.Event
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	Pause(partitions []kafka.TopicPartition) error
	Resume(partitions []kafka.TopicPartition) error
	Close() error
}

// Dispatcher receives consumed records. worker.Pool implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec worker.Record) error
	Revoke(tps []worker.TopicPartition)
}

// Consumer polls the enrichment topic and hands records to a Dispatcher.
// It is also the worker.Committer the pool commits through.
type Consumer struct {
	client    consumerClient
	config    *Config
	topics    []string
	logger    logging.Logger
	mu        sync.Mutex
	target    Dispatcher
	closeOnce sync.Once
}

var _ worker.Committer = (*Consumer)(nil)

// NewConsumer validates config and joins the consumer group. Nothing is
// consumed until Run is called.
func NewConsumer(config *Config, topics []string, logger logging.Logger) (*Consumer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Kafka config: %w", err)
	}
	if len(topics) == 0 {
		return nil, errors.ConfigError("at least one topic is required")
	}

	client, err := kafka.NewConsumer(config.ConsumerConfigMap())
	if err != nil {
		return nil, errors.BrokerUnavailableError("failed to create Kafka consumer", err)
	}

	return newConsumer(client, config, topics, logger), nil
}

func newConsumer(client consumerClient, config *Config, topics []string, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consumer{
		client: client,
		config: config,
		topics: topics,
		logger: logger.WithFields(
			logging.String("component", "kafka_consumer"),
			logging.String("group", config.GroupID),
		),
	}
}

// Run subscribes and polls until ctx is done or the client reports a fatal
// error. Records are dispatched in poll order; the dispatcher owns commits.
func (c *Consumer) Run(ctx context.Context, target Dispatcher) error {
	c.mu.Lock()
	c.target = target
	c.mu.Unlock()

	if err := c.client.SubscribeTopics(c.topics, c.rebalance); err != nil {
		return errors.BrokerUnavailableError(fmt.Sprintf("failed to subscribe to %v", c.topics), err)
	}
	c.logger.Info("Consumer started", logging.Any("topics", c.topics))

	pollMs := int(c.config.PollInterval.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopping")
			return nil
		default:
		}

		switch e := c.client.Poll(pollMs).(type) {
		case nil:
			continue

		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				c.logger.Warn("Consumed message carries an error", logging.Err(e.TopicPartition.Error))
				continue
			}
			if err := target.Dispatch(ctx, toRecord(e)); err != nil {
				if ctx.Err() != nil || stderrors.Is(err, worker.ErrPoolClosed) {
					return nil
				}
				c.logger.Error("Failed to dispatch message", err,
					logging.Int("partition", int(e.TopicPartition.Partition)),
					logging.Int64("offset", int64(e.TopicPartition.Offset)),
				)
			}

		case kafka.Error:
			if e.IsFatal() {
				c.logger.Error("Fatal Kafka consumer error", e)
				return errors.BrokerUnavailableError("fatal consumer error", e)
			}
			c.logger.Warn("Kafka consumer error",
				logging.String("code", e.Code().String()),
				logging.Err(e),
			)

		default:
			c.logger.Debug("Ignored consumer event", logging.String("event", e.String()))
		}
	}
}

// rebalance runs inside Poll. Revoked partitions are drained by the pool
// before the group moves them; assignment is left to the client default.
func (c *Consumer) rebalance(_ *kafka.Consumer, ev kafka.Event) error {
	switch e := ev.(type) {
	case kafka.AssignedPartitions:
		c.logger.Info("Partitions assigned", logging.Int("count", len(e.Partitions)))
	case kafka.RevokedPartitions:
		c.logger.Info("Partitions revoked", logging.Int("count", len(e.Partitions)))
		c.mu.Lock()
		target := c.target
		c.mu.Unlock()
		if target != nil {
			target.Revoke(toWorkerPartitions(e.Partitions))
		}
	}
	return nil
}

// Commit synchronously commits offset for tp
func (c *Consumer) Commit(ctx context.Context, tp worker.TopicPartition, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := tp.Topic
	_, err := c.client.CommitOffsets([]kafka.TopicPartition{{
		Topic:     &topic,
		Partition: tp.Partition,
		Offset:    kafka.Offset(offset),
	}})
	if err != nil {
		return errors.BrokerUnavailableError("failed to commit offset", err)
	}
	return nil
}

// Pause stops fetching from tps
func (c *Consumer) Pause(tps ...worker.TopicPartition) error {
	return c.client.Pause(toKafkaPartitions(tps))
}

// Resume restarts fetching from tps
func (c *Consumer) Resume(tps ...worker.TopicPartition) error {
	return c.client.Resume(toKafkaPartitions(tps))
}

// Close leaves the group and closes the client
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.client.Close()
	})
	return err
}

func toRecord(m *kafka.Message) worker.Record {
	var headers map[string]string
	if len(m.Headers) > 0 {
		headers = make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			headers[h.Key] = string(h.Value)
		}
	}

	var topic string
	if m.TopicPartition.Topic != nil {
		topic = *m.TopicPartition.Topic
	}

	return worker.Record{
		Topic:     topic,
		Partition: m.TopicPartition.Partition,
		Offset:    int64(m.TopicPartition.Offset),
		Key:       m.Key,
		Value:     m.Value,
		Headers:   headers,
		Timestamp: m.Timestamp,
	}
}

func toKafkaPartitions(tps []worker.TopicPartition) []kafka.TopicPartition {
	out := make([]kafka.TopicPartition, 0, len(tps))
	for _, tp := range tps {
		topic := tp.Topic
		out = append(out, kafka.TopicPartition{Topic: &topic, Partition: tp.Partition})
	}
	return out
}

func toWorkerPartitions(tps []kafka.TopicPartition) []worker.TopicPartition {
	out := make([]worker.TopicPartition, 0, len(tps))
	for _, tp := range tps {
		if tp.Topic == nil {
			continue
		}
		out = append(out, worker.TopicPartition{Topic: *tp.Topic, Partition: tp.Partition})
	}
	return out
}
