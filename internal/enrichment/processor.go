package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"
	"user-onboarding/internal/brokers"
	"user-onboarding/internal/common/errors"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/common/retry"
	"user-onboarding/internal/directory"
	"user-onboarding/internal/metrics"
	"user-onboarding/internal/models"
	"user-onboarding/internal/storage"
	"user-onboarding/internal/worker"
)

// DeadLetterSink receives requests that reached a terminal failure.
type DeadLetterSink interface {
	Publish(ctx context.Context, rec *models.DeadLetterRecord) error
}

// ProcessorConfig holds the retry policies of the processor
type ProcessorConfig struct {
	// Retry governs fetch, merge and store as one attempt
	Retry retry.Config
	// DeadLetterRetry governs dead-letter publishing; it should be unlimited
	DeadLetterRetry retry.Config
}

// DefaultProcessorConfig returns three enrichment attempts and unlimited
// dead-letter publishing.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Retry: retry.DefaultConfig(),
		DeadLetterRetry: retry.Config{
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2.0,
			Unlimited:     true,
		},
	}
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithRetryOptions passes options to every retry controller the processor builds.
func WithRetryOptions(opts ...retry.Option) ProcessorOption {
	return func(p *Processor) {
		p.retryOpts = append(p.retryOpts, opts...)
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		p.now = now
	}
}

// Processor handles one consumed enrichment request: decode, then fetch,
// merge and store under the retry policy, or dead-letter the request.
type Processor struct {
	fetcher     directory.Fetcher
	store       storage.UserStore
	deadLetters DeadLetterSink
	config      ProcessorConfig
	retryOpts   []retry.Option
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

var _ worker.Handler = (*Processor)(nil)

// NewProcessor creates a processor
func NewProcessor(fetcher directory.Fetcher, store storage.UserStore, deadLetters DeadLetterSink, config ProcessorConfig, logger logging.Logger, m *metrics.Metrics, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	config.DeadLetterRetry.Unlimited = true

	p := &Processor{
		fetcher:     fetcher,
		store:       store,
		deadLetters: deadLetters,
		config:      config,
		logger:      logger.WithFields(logging.String("component", "processor")),
		metrics:     m,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle implements worker.Handler. It returns nil once the request is
// stored or dead-lettered, and an error only when ctx ended first, leaving
// the message uncommitted for redelivery.
func (p *Processor) Handle(ctx context.Context, rec worker.Record) error {
	start := p.now()
	defer func() {
		p.metrics.ObserveProcessing(p.now().Sub(start))
	}()

	correlationID := rec.Header(brokers.HeaderCorrelationID)
	employeeID := string(rec.Key)

	req, err := models.DecodeEnrichmentRequest(rec.Value)
	if req != nil {
		if correlationID == "" {
			correlationID = req.CorrelationID
		}
		if employeeID == "" {
			employeeID = req.EmployeeID
		}
	}

	logger := p.logger.WithContext(logging.ContextWithCorrelationID(ctx, correlationID)).WithFields(
		logging.String("employee", logging.HashID(employeeID)),
		logging.Int("partition", int(rec.Partition)),
		logging.Int64("offset", rec.Offset),
	)

	if err != nil {
		logger.Warn("Rejecting undecodable enrichment request", logging.Err(err))
		p.metrics.IncAttempt("failure", string(errors.GetType(err)))
		return p.deadLetter(ctx, logger, rec.Value, correlationID, employeeID, retry.Result{
			Attempts: 1,
			Kind:     errors.GetType(err),
			Err:      err,
		})
	}

	logger.Info("Processing enrichment request",
		logging.String("email", logging.MaskEmail(req.HRPayload.Email)),
	)

	controller := retry.NewController(p.config.Retry, p.controllerOptions(p.observeEnrichment(logger))...)
	var stored *models.EnrichedUser
	result := controller.Do(ctx, func(ctx context.Context, attempt int) error {
		user, err := p.enrich(ctx, req)
		if err != nil {
			return err
		}
		stored = user
		return nil
	})

	if result.Succeeded() {
		p.metrics.IncOutcome("stored")
		logger.Info("Enrichment completed",
			logging.Int("attempts", result.Attempts),
			logging.Int("groups", len(stored.Groups)),
			logging.Int("applications", len(stored.Applications)),
		)
		return nil
	}

	if result.Cancelled || ctx.Err() != nil {
		p.metrics.IncOutcome("abandoned")
		logger.Warn("Enrichment abandoned on shutdown", logging.Int("attempts", result.Attempts))
		return fmt.Errorf("enrichment abandoned after %d attempts: %w", result.Attempts, contextErr(ctx, result.Err))
	}

	logger.Error("Enrichment failed", result.Err,
		logging.String("error_kind", string(result.Kind)),
		logging.Int("attempts", result.Attempts),
	)
	return p.deadLetter(ctx, logger, rec.Value, correlationID, employeeID, result)
}

// enrich is one attempt. A partial directory result is never stored: any
// failing call fails the whole attempt.
func (p *Processor) enrich(ctx context.Context, req *models.EnrichmentRequest) (*models.EnrichedUser, error) {
	var (
		dir *models.DirectoryUser
		err error
	)
	if email := strings.TrimSpace(req.HRPayload.Email); email != "" {
		dir, err = p.fetcher.Fetch(ctx, email)
	} else {
		dir, err = p.fetcher.FetchByEmployeeNumber(ctx, req.EmployeeID)
	}
	if err != nil {
		return nil, err
	}

	user := Merge(req.HRPayload, dir)
	if err := p.store.Put(ctx, req.EmployeeID, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *Processor) deadLetter(ctx context.Context, logger logging.Logger, raw []byte, correlationID, employeeID string, result retry.Result) error {
	record := models.NewDeadLetterRecord(raw, correlationID, employeeID,
		string(result.Kind), result.Err.Error(), result.Attempts, p.now())

	controller := retry.NewController(p.config.DeadLetterRetry, p.controllerOptions(func(a retry.Attempt) {
		if a.Err != nil {
			logger.Warn("Dead-letter publish failed, retrying",
				logging.Int("attempt", a.Number),
				logging.Duration("delay", a.NextDelay),
				logging.Err(a.Err),
			)
		}
	})...)

	published := controller.Do(ctx, func(ctx context.Context, attempt int) error {
		return p.deadLetters.Publish(ctx, record)
	})
	if !published.Succeeded() {
		p.metrics.IncOutcome("abandoned")
		logger.Error("Dead-letter publish abandoned, leaving message uncommitted", published.Err,
			logging.Int("attempts", published.Attempts),
		)
		return fmt.Errorf("dead-letter publish abandoned: %w", published.Err)
	}

	p.metrics.IncOutcome("dead_lettered")
	return nil
}

func (p *Processor) observeEnrichment(logger logging.Logger) func(retry.Attempt) {
	return func(a retry.Attempt) {
		if a.Err == nil {
			p.metrics.IncAttempt("success", "")
			logger.Debug("Enrichment attempt succeeded", logging.Int("attempt", a.Number))
			return
		}

		kind := string(errors.GetType(a.Err))
		p.metrics.IncAttempt("failure", kind)
		fields := []logging.Field{
			logging.Int("attempt", a.Number),
			logging.String("error_kind", kind),
			logging.String("class", a.Class.String()),
			logging.Err(a.Err),
		}
		if a.NextDelay > 0 {
			logger.Warn("Enrichment attempt failed, retrying", append(fields, logging.Duration("delay", a.NextDelay))...)
			return
		}
		logger.Warn("Enrichment attempt failed", fields...)
	}
}

func (p *Processor) controllerOptions(observer func(retry.Attempt)) []retry.Option {
	opts := make([]retry.Option, 0, len(p.retryOpts)+1)
	opts = append(opts, p.retryOpts...)
	return append(opts, retry.WithObserver(observer))
}

func contextErr(ctx context.Context, fallback error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fallback
}
