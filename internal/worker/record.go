// Package worker runs consumed messages through a handler with one lane per
// partition, committing offsets only after the handler reaches a terminal
// outcome. It knows nothing about the broker beyond the Committer interface.
package worker

import (
	"context"
	"time"
)

// Record is one consumed message
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Header returns the named header or ""
func (r Record) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[name]
}

// Handler processes a record. A nil return means the record reached a
// terminal outcome and its offset may be committed. A non-nil return leaves
// the record uncommitted.
type Handler interface {
	Handle(ctx context.Context, rec Record) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, rec Record) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// TopicPartition identifies a lane
type TopicPartition struct {
	Topic     string
	Partition int32
}

// Committer is the consumer-side control surface the pool drives.
type Committer interface {
	// Commit stores offset as the next offset to read for the partition.
	Commit(ctx context.Context, tp TopicPartition, offset int64) error
	Pause(tps ...TopicPartition) error
	Resume(tps ...TopicPartition) error
}
