// Package retry runs an operation under a bounded exponential backoff policy
// and stops early on terminal failures.
package retry

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
	"user-onboarding/internal/common/errors"
)

// Config holds configuration for retry operations with exponential backoff.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps exponential growth
	MaxDelay time.Duration

	// BackoffFactor is the multiplier for exponential backoff (e.g., 2.0 doubles delay)
	BackoffFactor float64

	// JitterFactor adds randomness to delays (0.0-1.0, where 0.1 = 10% jitter)
	JitterFactor float64

	// Unlimited ignores MaxAttempts and retries transient failures until the
	// context is done.
	Unlimited bool
}

// DefaultConfig returns the enrichment policy: three attempts, retried after
// 2s and then 4s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Attempt is reported to the observer after every call of the operation.
type Attempt struct {
	Number int
	Err    error
	Class  errors.Class
	// NextDelay is the backoff before the next attempt, zero when none follows.
	NextDelay time.Duration
}

// Result is the outcome of Do.
type Result struct {
	Attempts int
	// Kind is the error type of the last failure, empty on success.
	Kind errors.ErrorType
	Err  error
	// Cancelled is set when the context ended the loop before a terminal outcome.
	Cancelled bool
}

// Succeeded reports whether the operation eventually returned nil.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Controller drives an operation through the retry policy. It does not log;
// callers observe attempts through OnAttempt.
type Controller struct {
	config    Config
	onAttempt func(Attempt)
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Controller
type Option func(*Controller)

// WithObserver registers a callback invoked after each attempt.
func WithObserver(fn func(Attempt)) Option {
	return func(c *Controller) {
		c.onAttempt = fn
	}
}

// WithSleep replaces the backoff sleep, used by tests to record delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		c.sleep = fn
	}
}

// NewController creates a controller, filling unset fields from DefaultConfig.
func NewController(config Config, opts ...Option) *Controller {
	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = defaults.BackoffFactor
	}

	c := &Controller{
		config: config,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do calls op until it succeeds, fails terminally, exhausts the attempt
// budget, or ctx is done. An exhausted transient failure is returned as is;
// the caller treats it as terminal.
func (c *Controller) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) Result {
	delay := c.config.InitialDelay

	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			c.observe(Attempt{Number: attempt})
			return Result{Attempts: attempt}
		}

		class := errors.Classify(err)
		last := class == errors.Terminal || (!c.config.Unlimited && attempt >= c.config.MaxAttempts)

		next := time.Duration(0)
		if !last {
			next = c.withJitter(delay)
		}
		c.observe(Attempt{Number: attempt, Err: err, Class: class, NextDelay: next})

		if last {
			return Result{Attempts: attempt, Kind: errors.GetType(err), Err: err}
		}

		if sleepErr := c.sleep(ctx, next); sleepErr != nil {
			return Result{Attempts: attempt, Kind: errors.GetType(err), Err: err, Cancelled: true}
		}

		delay = time.Duration(float64(delay) * c.config.BackoffFactor)
		if delay > c.config.MaxDelay {
			delay = c.config.MaxDelay
		}
	}
}

func (c *Controller) observe(a Attempt) {
	if c.onAttempt != nil {
		c.onAttempt(a)
	}
}

func (c *Controller) withJitter(delay time.Duration) time.Duration {
	if c.config.JitterFactor <= 0 {
		return delay
	}
	jitter := time.Duration(float64(delay) * c.config.JitterFactor)
	return delay + time.Duration(randomInt64n(int64(jitter)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// randomInt64n returns a random int64 in [0, n), falling back to the clock
// when crypto/rand fails.
func randomInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano() % n
	}
	return int64(binary.BigEndian.Uint64(buf[:])>>1) % n
}
