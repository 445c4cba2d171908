// Package testutil provides broker fakes for unit tests.
package testutil

import (
	"context"
	"sync"
	"user-onboarding/internal/brokers"
	"user-onboarding/internal/common/errors"
)

// RecordingPublisher stores published messages and can fail a number of
// times before accepting writes.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []*brokers.Message
	failures int
	calls    int
	closed   bool
}

var _ brokers.Publisher = (*RecordingPublisher)(nil)

// NewRecordingPublisher returns a publisher that fails the first failTimes calls.
func NewRecordingPublisher(failTimes int) *RecordingPublisher {
	return &RecordingPublisher{failures: failTimes}
}

// Publish records msg or returns a broker-unavailable error
func (p *RecordingPublisher) Publish(ctx context.Context, msg *brokers.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if err := ctx.Err(); err != nil {
		return errors.BrokerUnavailableError("publish cancelled", err)
	}
	if p.failures > 0 {
		p.failures--
		return errors.BrokerUnavailableError("broker unavailable", nil)
	}
	p.messages = append(p.messages, msg)
	return nil
}

// FailAlways makes every later call fail.
func (p *RecordingPublisher) FailAlways() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = int(^uint(0) >> 1)
}

// Messages returns a snapshot of accepted messages
func (p *RecordingPublisher) Messages() []*brokers.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*brokers.Message(nil), p.messages...)
}

// Calls returns the number of Publish calls, failed ones included
func (p *RecordingPublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Closed reports whether Close was called
func (p *RecordingPublisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close marks the publisher closed
func (p *RecordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
