package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/metrics"
)

// ErrPoolClosed is returned by Dispatch after Shutdown
var ErrPoolClosed = stderrors.New("worker pool is shut down")

// Config holds pool settings
type Config struct {
	// LaneBuffer is the per-partition queue size; a full lane pauses its partition.
	LaneBuffer int
	// ShutdownGrace bounds how long in-flight records may run after a stop.
	ShutdownGrace time.Duration
	// HandlerRetryDelay is the first delay before re-running a record whose
	// handler returned an error while the lane was still live.
	HandlerRetryDelay time.Duration
	// CommitTimeout bounds each offset commit
	CommitTimeout time.Duration
}

// DefaultConfig returns default pool settings
func DefaultConfig() Config {
	return Config{
		LaneBuffer:        64,
		ShutdownGrace:     30 * time.Second,
		HandlerRetryDelay: time.Second,
		CommitTimeout:     10 * time.Second,
	}
}

const maxHandlerRetryDelay = 30 * time.Second

// Pool fans records out to per-partition lanes. Dispatch, Revoke and
// Shutdown are meant to be called from the single consumer goroutine.
type Pool struct {
	config    Config
	handler   Handler
	committer Committer
	logger    logging.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	lanes  map[TopicPartition]*lane
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type lane struct {
	tp     TopicPartition
	queue  chan Record
	stop   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	paused bool
}

// NewPool creates a pool; lanes start lazily on the first record of a partition.
func NewPool(config Config, handler Handler, committer Committer, logger logging.Logger, m *metrics.Metrics) *Pool {
	defaults := DefaultConfig()
	if config.LaneBuffer <= 0 {
		config.LaneBuffer = defaults.LaneBuffer
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = defaults.ShutdownGrace
	}
	if config.HandlerRetryDelay <= 0 {
		config.HandlerRetryDelay = defaults.HandlerRetryDelay
	}
	if config.CommitTimeout <= 0 {
		config.CommitTimeout = defaults.CommitTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	// Processing runs on its own context so stopping the poll loop does not
	// cancel in-flight work; Shutdown cancels it once the grace expires.
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		config:    config,
		handler:   handler,
		committer: committer,
		logger:    logger.WithFields(logging.String("component", "worker_pool")),
		metrics:   m,
		lanes:     make(map[TopicPartition]*lane),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Dispatch queues rec on its partition lane. It blocks only when the lane is
// full and the broker kept delivering after the partition was paused.
func (p *Pool) Dispatch(ctx context.Context, rec Record) error {
	tp := TopicPartition{Topic: rec.Topic, Partition: rec.Partition}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	l, ok := p.lanes[tp]
	if !ok {
		l = p.startLane(tp)
	}
	p.mu.Unlock()

	select {
	case l.queue <- rec:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return fmt.Errorf("lane %s[%d] stopped", tp.Topic, tp.Partition)
	}

	p.metrics.SetLaneBacklog(tp.Partition, len(l.queue))

	// depth is read under l.mu; a lane drained before the lock was taken has
	// already run maybeResume and would never resume the partition.
	l.mu.Lock()
	defer l.mu.Unlock()
	depth := len(l.queue)
	if !l.paused && depth >= p.config.LaneBuffer {
		if err := p.committer.Pause(tp); err != nil {
			p.logger.Warn("Failed to pause partition", logging.Int("partition", int(tp.Partition)), logging.Err(err))
			return nil
		}
		l.paused = true
		p.metrics.IncPartitionPause()
		p.logger.Debug("Partition paused", logging.Int("partition", int(tp.Partition)), logging.Int("backlog", depth))
	}
	return nil
}

// startLane must be called with p.mu held
func (p *Pool) startLane(tp TopicPartition) *lane {
	ctx, cancel := context.WithCancel(p.ctx)
	l := &lane{
		tp:     tp,
		queue:  make(chan Record, p.config.LaneBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	p.lanes[tp] = l

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(l.done)
		defer cancel()
		p.runLane(l)
	}()

	p.logger.Info("Lane started", logging.String("topic", tp.Topic), logging.Int("partition", int(tp.Partition)))
	return l
}

func (p *Pool) runLane(l *lane) {
	for {
		select {
		case <-l.stop:
			return
		case rec := <-l.queue:
			// stop wins over queued work
			select {
			case <-l.stop:
				return
			default:
			}
			if !p.process(l, rec) {
				return
			}
			p.metrics.SetLaneBacklog(l.tp.Partition, len(l.queue))
			p.maybeResume(l)
		}
	}
}

// process runs rec until the handler succeeds and commits its offset. It
// returns false when the lane context ended first, leaving rec uncommitted.
func (p *Pool) process(l *lane, rec Record) bool {
	delay := p.config.HandlerRetryDelay
	for {
		err := p.handler.Handle(l.ctx, rec)
		if err == nil {
			p.commit(l.tp, rec.Offset+1)
			return true
		}
		if l.ctx.Err() != nil {
			p.logger.Warn("Record abandoned uncommitted",
				logging.Int("partition", int(rec.Partition)),
				logging.Int64("offset", rec.Offset),
			)
			return false
		}

		p.logger.Error("Handler did not reach a terminal outcome, retrying", err,
			logging.Int("partition", int(rec.Partition)),
			logging.Int64("offset", rec.Offset),
			logging.Duration("delay", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-l.ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		delay *= 2
		if delay > maxHandlerRetryDelay {
			delay = maxHandlerRetryDelay
		}
	}
}

func (p *Pool) commit(tp TopicPartition, offset int64) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.CommitTimeout)
	defer cancel()

	// A failed commit is covered by the next one on the same partition; at
	// worst the record is redelivered and reprocessed idempotently.
	if err := p.committer.Commit(ctx, tp, offset); err != nil {
		p.logger.Warn("Offset commit failed",
			logging.Int("partition", int(tp.Partition)),
			logging.Int64("offset", offset),
			logging.Err(err),
		)
	}
}

func (p *Pool) maybeResume(l *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.paused || len(l.queue) > 0 {
		return
	}
	if err := p.committer.Resume(l.tp); err != nil {
		p.logger.Warn("Failed to resume partition", logging.Int("partition", int(l.tp.Partition)), logging.Err(err))
		return
	}
	l.paused = false
	p.logger.Debug("Partition resumed", logging.Int("partition", int(l.tp.Partition)))
}

// Revoke stops the lanes of tps. In-flight records get the shutdown grace
// to finish; queued records are dropped uncommitted.
func (p *Pool) Revoke(tps []TopicPartition) {
	p.mu.Lock()
	var stopping []*lane
	for _, tp := range tps {
		if l, ok := p.lanes[tp]; ok {
			delete(p.lanes, tp)
			stopping = append(stopping, l)
		}
	}
	p.mu.Unlock()

	if len(stopping) == 0 {
		return
	}
	if !p.stopLanes(stopping, p.config.ShutdownGrace) {
		p.logger.Warn("Revoked lanes exceeded grace period", logging.Int("lanes", len(stopping)))
	}
	for _, l := range stopping {
		p.metrics.SetLaneBacklog(l.tp.Partition, 0)
	}
}

// Shutdown stops every lane, waits up to grace for in-flight records, then
// cancels them. It returns an error when the grace period was exceeded.
func (p *Pool) Shutdown(grace time.Duration) error {
	if grace <= 0 {
		grace = p.config.ShutdownGrace
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	lanes := make([]*lane, 0, len(p.lanes))
	for tp, l := range p.lanes {
		lanes = append(lanes, l)
		delete(p.lanes, tp)
	}
	p.mu.Unlock()

	clean := p.stopLanes(lanes, grace)
	p.cancel()
	p.wg.Wait()

	if !clean {
		return fmt.Errorf("shutdown grace %s exceeded, in-flight records abandoned", grace)
	}
	p.logger.Info("Worker pool stopped")
	return nil
}

// stopLanes signals lanes to stop and cancels any still running after grace.
func (p *Pool) stopLanes(lanes []*lane, grace time.Duration) bool {
	for _, l := range lanes {
		close(l.stop)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	expired := false
	for _, l := range lanes {
		if expired {
			<-l.done
			continue
		}
		select {
		case <-l.done:
		case <-timer.C:
			expired = true
			for _, rest := range lanes {
				rest.cancel()
			}
			<-l.done
		}
	}
	return !expired
}

// Lanes returns the number of running lanes
func (p *Pool) Lanes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes)
}
