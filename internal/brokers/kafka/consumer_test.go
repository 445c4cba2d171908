package kafka

import (
	"context"
	"sync"
	"testing"
	"time"
	"user-onboarding/internal/worker"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConsumerClient struct {
	mu        sync.Mutex
	events    []kafka.Event
	topics    []string
	cb        kafka.RebalanceCb
	commits   []kafka.TopicPartition
	paused    []kafka.TopicPartition
	resumed   []kafka.TopicPartition
	closed    bool
	subscribe error
}

func (f *fakeConsumerClient) push(events ...kafka.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
}

func (f *fakeConsumerClient) SubscribeTopics(topics []string, cb kafka.RebalanceCb) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = topics
	f.cb = cb
	return f.subscribe
}

func (f *fakeConsumerClient) Poll(int) kafka.Event {
	f.mu.Lock()
	if len(f.events) == 0 {
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		return nil
	}
	ev := f.events[0]
	f.events = f.events[1:]
	cb := f.cb
	f.mu.Unlock()

	switch ev.(type) {
	case kafka.AssignedPartitions, kafka.RevokedPartitions:
		if cb != nil {
			_ = cb(nil, ev)
		}
		return nil
	}
	return ev
}

func (f *fakeConsumerClient) CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, offsets...)
	return offsets, nil
}

func (f *fakeConsumerClient) Pause(partitions []kafka.TopicPartition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, partitions...)
	return nil
}

func (f *fakeConsumerClient) Resume(partitions []kafka.TopicPartition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, partitions...)
	return nil
}

func (f *fakeConsumerClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConsumerClient) committedOffsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.commits))
	for _, c := range f.commits {
		out = append(out, int64(c.Offset))
	}
	return out
}

type fakeDispatcher struct {
	mu      sync.Mutex
	records []worker.Record
	revoked []worker.TopicPartition
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, rec worker.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, rec)
	return nil
}

func (d *fakeDispatcher) Revoke(tps []worker.TopicPartition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked = append(d.revoked, tps...)
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

func kafkaMessage(topic string, partition int32, offset int64, key, value string) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: partition, Offset: kafka.Offset(offset)},
		Key:            []byte(key),
		Value:          []byte(value),
		Headers:        []kafka.Header{{Key: "correlation_id", Value: []byte("corr-" + key)}},
	}
}

func testConsumerConfig() *Config {
	config := DefaultConfig()
	config.PollInterval = time.Millisecond
	return config
}

func TestConsumer_RunDispatchesRecords(t *testing.T) {
	client := &fakeConsumerClient{}
	client.push(
		kafkaMessage("requests", 0, 5, "12345", `{"a":1}`),
		kafka.NewError(kafka.ErrAllBrokersDown, "all brokers down", false),
		kafkaMessage("requests", 1, 9, "67890", `{"b":2}`),
	)
	c := newConsumer(client, testConsumerConfig(), []string{"requests"}, nil)
	target := &fakeDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, target) }()

	require.Eventually(t, func() bool { return target.count() == 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"requests"}, client.topics)
	rec := target.records[0]
	assert.Equal(t, "requests", rec.Topic)
	assert.Equal(t, int32(0), rec.Partition)
	assert.Equal(t, int64(5), rec.Offset)
	assert.Equal(t, []byte("12345"), rec.Key)
	assert.Equal(t, "corr-12345", rec.Header("correlation_id"))
	assert.Equal(t, int32(1), target.records[1].Partition)
}

func TestConsumer_FatalErrorStopsRun(t *testing.T) {
	client := &fakeConsumerClient{}
	client.push(kafka.NewError(kafka.ErrFatal, "fenced", true))
	c := newConsumer(client, testConsumerConfig(), []string{"requests"}, nil)

	err := c.Run(context.Background(), &fakeDispatcher{})
	require.Error(t, err)
}

func TestConsumer_RevokeDrainsDispatcher(t *testing.T) {
	topic := "requests"
	client := &fakeConsumerClient{}
	client.push(
		kafka.AssignedPartitions{Partitions: []kafka.TopicPartition{{Topic: &topic, Partition: 0}, {Topic: &topic, Partition: 1}}},
		kafka.RevokedPartitions{Partitions: []kafka.TopicPartition{{Topic: &topic, Partition: 1}}},
	)
	c := newConsumer(client, testConsumerConfig(), []string{topic}, nil)
	target := &fakeDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, target) }()

	require.Eventually(t, func() bool {
		target.mu.Lock()
		defer target.mu.Unlock()
		return len(target.revoked) == 1
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []worker.TopicPartition{{Topic: topic, Partition: 1}}, target.revoked)
}

func TestConsumer_CommitterSurface(t *testing.T) {
	client := &fakeConsumerClient{}
	c := newConsumer(client, testConsumerConfig(), []string{"requests"}, nil)
	tp := worker.TopicPartition{Topic: "requests", Partition: 2}

	require.NoError(t, c.Commit(context.Background(), tp, 42))
	require.NoError(t, c.Pause(tp))
	require.NoError(t, c.Resume(tp))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	require.Len(t, client.commits, 1)
	assert.Equal(t, "requests", *client.commits[0].Topic)
	assert.Equal(t, int32(2), client.commits[0].Partition)
	assert.Equal(t, kafka.Offset(42), client.commits[0].Offset)
	assert.Len(t, client.paused, 1)
	assert.Len(t, client.resumed, 1)
	assert.True(t, client.closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.Commit(ctx, tp, 43))
}

func TestConsumer_WithPoolCommitsAfterHandling(t *testing.T) {
	client := &fakeConsumerClient{}
	client.push(
		kafkaMessage("requests", 0, 0, "a", "{}"),
		kafkaMessage("requests", 0, 1, "b", "{}"),
		kafkaMessage("requests", 0, 2, "c", "{}"),
	)
	c := newConsumer(client, testConsumerConfig(), []string{"requests"}, nil)

	var mu sync.Mutex
	var handled []string
	handler := worker.HandlerFunc(func(ctx context.Context, rec worker.Record) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, string(rec.Key))
		return nil
	})
	pool := worker.NewPool(worker.Config{LaneBuffer: 8}, handler, c, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, pool) }()

	require.Eventually(t, func() bool { return len(client.committedOffsets()) == 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.NoError(t, pool.Shutdown(time.Second))

	assert.Equal(t, []int64{1, 2, 3}, client.committedOffsets())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, handled)
}
