package app

import (
	"context"
	"fmt"
	"user-onboarding/internal/brokers"
	"user-onboarding/internal/brokers/dlq"
	"user-onboarding/internal/brokers/kafka"
	"user-onboarding/internal/circuitbreaker"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/common/retry"
	"user-onboarding/internal/config"
	"user-onboarding/internal/directory"
	"user-onboarding/internal/enrichment"
	"user-onboarding/internal/handlers"
	"user-onboarding/internal/metrics"
	"user-onboarding/internal/storage"
	"user-onboarding/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds all the application dependencies. Which of them are set
// depends on the Mode.
type App struct {
	Config   *config.Config
	Mode     Mode
	Logger   logging.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store       storage.Backend
	Broker      brokers.Publisher
	Requests    *enrichment.Publisher
	DeadLetters *dlq.Publisher
	Directory   directory.Fetcher
	Processor   *enrichment.Processor
	Pool        *worker.Pool
	Consumer    *kafka.Consumer
}

// Option overrides a dependency New would otherwise build from the config
type Option func(*App)

// WithStore uses backend instead of the configured storage backend
func WithStore(backend storage.Backend) Option {
	return func(a *App) { a.Store = backend }
}

// WithBroker uses pub instead of a Kafka producer
func WithBroker(pub brokers.Publisher) Option {
	return func(a *App) { a.Broker = pub }
}

// WithDirectory uses f instead of the directory HTTP client
func WithDirectory(f directory.Fetcher) Option {
	return func(a *App) { a.Directory = f }
}

// New creates a new application instance with all dependencies for mode.
// The Kafka consumer and worker pool are only built when the mode consumes.
func New(cfg *config.Config, mode Mode, logger logging.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	app := &App{
		Config:   cfg,
		Mode:     mode,
		Logger:   logger.WithFields(logging.String("component", "app")),
		Registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(app)
	}

	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.NewWithRegistry(app.Registry)

	// Initialize components in order of dependency
	if err := app.initializeStorage(); err != nil {
		return nil, err
	}
	if err := app.initializeBroker(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.Requests = enrichment.NewPublisher(app.Broker, enrichment.PublisherConfig{
		Topic:   cfg.KafkaEnrichmentTopic,
		Timeout: cfg.KafkaPublishTimeout,
	}, logger, app.Metrics)
	app.DeadLetters = dlq.NewPublisher(app.Broker, app.Store, dlq.Config{
		Topic: cfg.KafkaDLQTopic,
		TTL:   cfg.DeadLetterTTL,
	}, logger, app.Metrics)

	if mode.Consumes() {
		if err := app.initializeWorkers(); err != nil {
			app.Cleanup()
			return nil, err
		}
	}

	return app, nil
}

func (app *App) initializeBroker() error {
	if app.Broker != nil {
		return nil
	}

	producer, err := kafka.NewProducer(app.kafkaConfig(), app.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Kafka producer: %w", err)
	}
	app.Broker = producer
	app.Logger.Info("Broker: Kafka", logging.Any("brokers", app.Config.KafkaBrokers))
	return nil
}

func (app *App) initializeWorkers() error {
	cfg := app.Config

	if app.Directory == nil {
		breaker := circuitbreaker.DefaultConfig()
		client, err := directory.NewClient(directory.Config{
			BaseURL:        cfg.DirectoryBaseURL,
			Token:          cfg.DirectoryAPIToken,
			AuthScheme:     cfg.DirectoryAuthScheme,
			Timeout:        cfg.DirectoryTimeout,
			MaxPages:       directory.DefaultConfig().MaxPages,
			RateLimit:      cfg.DirectoryRateLimit,
			Burst:          1,
			BreakerEnabled: cfg.DirectoryBreakerEnabled,
			Breaker:        breaker,
		}, app.Logger, directory.WithMetrics(app.Metrics))
		if err != nil {
			return fmt.Errorf("failed to initialize directory client: %w", err)
		}
		app.Directory = client
	}

	processorConfig := enrichment.DefaultProcessorConfig()
	processorConfig.Retry = retry.Config{
		MaxAttempts:   cfg.RetryMaxAttempts,
		InitialDelay:  cfg.RetryInitialDelay,
		MaxDelay:      cfg.RetryMaxDelay,
		BackoffFactor: 2.0,
	}
	app.Processor = enrichment.NewProcessor(app.Directory, app.Store, app.DeadLetters, processorConfig, app.Logger, app.Metrics)

	consumer, err := kafka.NewConsumer(app.kafkaConfig(), []string{cfg.KafkaEnrichmentTopic}, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Kafka consumer: %w", err)
	}
	app.Consumer = consumer

	poolConfig := worker.DefaultConfig()
	poolConfig.LaneBuffer = cfg.WorkerLaneBuffer
	poolConfig.ShutdownGrace = cfg.WorkerShutdownGrace
	app.Pool = worker.NewPool(poolConfig, app.Processor, consumer, app.Logger, app.Metrics)

	app.Logger.Info("Workers: Enabled",
		logging.String("topic", cfg.KafkaEnrichmentTopic),
		logging.String("group", cfg.KafkaConsumerGroup),
		logging.Int("lane_buffer", cfg.WorkerLaneBuffer),
	)
	return nil
}

func (app *App) kafkaConfig() *kafka.Config {
	cfg := app.Config
	return &kafka.Config{
		Brokers:          cfg.KafkaBrokers,
		ClientID:         cfg.KafkaClientID,
		GroupID:          cfg.KafkaConsumerGroup,
		SecurityProtocol: cfg.KafkaSecurityProtocol,
		SASLMechanism:    cfg.KafkaSASLMechanism,
		SASLUsername:     cfg.KafkaSASLUsername,
		SASLPassword:     cfg.KafkaSASLPassword,
		PublishTimeout:   cfg.KafkaPublishTimeout,
		Compression:      cfg.KafkaCompression,
	}
}

// healthChecks returns the probes exposed on the health endpoint
func (app *App) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"store": app.Store.Health,
	}
	if h, ok := app.Broker.(interface{ Health(context.Context) error }); ok {
		checks["broker"] = h.Health
	}
	if h, ok := app.Directory.(interface{ Health(context.Context) error }); ok {
		checks["directory"] = h.Health
	}
	return checks
}

// Shutdown drains the worker pool, which commits what it finished, before
// the consumer and the producer are closed.
func (app *App) Shutdown() error {
	var firstErr error
	if app.Pool != nil {
		if err := app.Pool.Shutdown(app.Config.WorkerShutdownGrace); err != nil {
			app.Logger.Warn("Worker pool did not drain in time", logging.Err(err))
			firstErr = err
		}
	}
	app.Cleanup()
	return firstErr
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Consumer != nil {
		if err := app.Consumer.Close(); err != nil {
			app.Logger.Warn("Error closing consumer", logging.Err(err))
		}
	}
	if app.Broker != nil {
		if err := app.Broker.Close(); err != nil {
			app.Logger.Warn("Error closing broker", logging.Err(err))
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn("Error closing storage", logging.Err(err))
		}
	}
}
