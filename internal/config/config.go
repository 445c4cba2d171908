// Package config provides configuration management for the user onboarding
// service. It loads configuration from environment variables with sensible
// defaults and validates it so the process refuses to start with settings
// that would fail on the first message.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: HTTP port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - API_KEY: Required X-API-Key on the webhook when set
//   - WEBHOOK_SECRET: HMAC-SHA256 secret for X-Webhook-Signature when set
//   - TLS_CERT_FILE, TLS_KEY_FILE: Serve HTTPS when both are set
//
// Directory Configuration:
//   - DIRECTORY_BASE_URL: Directory API base URL (required)
//   - DIRECTORY_API_TOKEN: Directory API token (required)
//   - DIRECTORY_AUTH_SCHEME: SSWS or Bearer (default: SSWS)
//   - DIRECTORY_TIMEOUT: Per-call timeout (default: 10s)
//   - DIRECTORY_RATE_LIMIT: Requests per second, 0 disables (default: 0)
//   - DIRECTORY_BREAKER_ENABLED: Wrap calls in a circuit breaker (default: true)
//
// Storage Configuration:
//   - STORAGE_BACKEND: memory or redis (default: memory)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - REDIS_KEY_PREFIX: Key prefix (default: user_onboarding:)
//   - DEAD_LETTER_TTL: How long dead letters stay indexed (default: 168h)
//
// Kafka Configuration:
//   - KAFKA_BROKERS: Comma separated bootstrap servers (default: localhost:9092)
//   - KAFKA_CLIENT_ID: Client id (default: user-onboarding)
//   - KAFKA_ENRICHMENT_TOPIC: Request topic (default: user.enrichment.requested)
//   - KAFKA_DLQ_TOPIC: Dead-letter topic (default: user.enrichment.failed)
//   - KAFKA_CONSUMER_GROUP: Consumer group (default: user-enrichment-workers)
//   - KAFKA_SECURITY_PROTOCOL: PLAINTEXT, SSL, SASL_PLAINTEXT or SASL_SSL
//   - KAFKA_SASL_MECHANISM, KAFKA_SASL_USERNAME, KAFKA_SASL_PASSWORD
//   - KAFKA_PUBLISH_TIMEOUT: Publish acknowledgement timeout (default: 5s)
//   - KAFKA_COMPRESSION: none, gzip, snappy, lz4 or zstd (default: snappy)
//
// Retry and Workers:
//   - RETRY_MAX_ATTEMPTS: Enrichment attempts per message (default: 3)
//   - RETRY_INITIAL_DELAY: Delay before the second attempt (default: 2s)
//   - RETRY_MAX_DELAY: Backoff cap (default: 30s)
//   - WORKER_LANE_BUFFER: Per-partition backlog before pausing (default: 64)
//   - WORKER_SHUTDOWN_GRACE: Grace for in-flight messages (default: 30s)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"user-onboarding/internal/common/validation"
)

// Config holds all configuration values. Load fills it from the
// environment; Validate must pass before it is used.
type Config struct {
	// Application settings
	Port          string
	LogLevel      string
	LogFormat     string
	APIKey        string // Empty disables webhook API key auth
	WebhookSecret string // Empty disables signature verification
	TLSCertFile   string
	TLSKeyFile    string

	// Directory
	DirectoryBaseURL        string
	DirectoryAPIToken       string
	DirectoryAuthScheme     string
	DirectoryTimeout        time.Duration
	DirectoryRateLimit      float64
	DirectoryBreakerEnabled bool

	// Storage
	StorageBackend string
	RedisAddress   string
	RedisPassword  string
	RedisDB        int
	RedisPoolSize  int
	RedisKeyPrefix string
	DeadLetterTTL  time.Duration

	// Kafka
	KafkaBrokers          []string
	KafkaClientID         string
	KafkaEnrichmentTopic  string
	KafkaDLQTopic         string
	KafkaConsumerGroup    string
	KafkaSecurityProtocol string
	KafkaSASLMechanism    string
	KafkaSASLUsername     string
	KafkaSASLPassword     string
	KafkaPublishTimeout   time.Duration
	KafkaCompression      string

	// Retry and workers
	RetryMaxAttempts    int
	RetryInitialDelay   time.Duration
	RetryMaxDelay       time.Duration
	WorkerLaneBuffer    int
	WorkerShutdownGrace time.Duration
}

// Load creates a Config from environment variables, falling back to
// defaults. It does not validate.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		APIKey:        getEnv("API_KEY", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		TLSCertFile:   getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:    getEnv("TLS_KEY_FILE", ""),

		DirectoryBaseURL:        getEnv("DIRECTORY_BASE_URL", ""),
		DirectoryAPIToken:       getEnv("DIRECTORY_API_TOKEN", ""),
		DirectoryAuthScheme:     getEnv("DIRECTORY_AUTH_SCHEME", "SSWS"),
		DirectoryTimeout:        getDurationEnv("DIRECTORY_TIMEOUT", 10*time.Second),
		DirectoryRateLimit:      getFloatEnv("DIRECTORY_RATE_LIMIT", 0),
		DirectoryBreakerEnabled: getBoolEnv("DIRECTORY_BREAKER_ENABLED", true),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "memory")),
		RedisAddress:   getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		RedisPoolSize:  getIntEnv("REDIS_POOL_SIZE", 10),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "user_onboarding:"),
		DeadLetterTTL:  getDurationEnv("DEAD_LETTER_TTL", 7*24*time.Hour),

		KafkaBrokers:          splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaClientID:         getEnv("KAFKA_CLIENT_ID", "user-onboarding"),
		KafkaEnrichmentTopic:  getEnv("KAFKA_ENRICHMENT_TOPIC", "user.enrichment.requested"),
		KafkaDLQTopic:         getEnv("KAFKA_DLQ_TOPIC", "user.enrichment.failed"),
		KafkaConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "user-enrichment-workers"),
		KafkaSecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		KafkaSASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", ""),
		KafkaSASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		KafkaSASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),
		KafkaPublishTimeout:   getDurationEnv("KAFKA_PUBLISH_TIMEOUT", 5*time.Second),
		KafkaCompression:      getEnv("KAFKA_COMPRESSION", "snappy"),

		RetryMaxAttempts:    getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay:   getDurationEnv("RETRY_INITIAL_DELAY", 2*time.Second),
		RetryMaxDelay:       getDurationEnv("RETRY_MAX_DELAY", 30*time.Second),
		WorkerLaneBuffer:    getIntEnv("WORKER_LANE_BUFFER", 64),
		WorkerShutdownGrace: getDurationEnv("WORKER_SHUTDOWN_GRACE", 30*time.Second),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool forms; anything else yields the default.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for a value that does not parse so Validate reports it.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return -1
		}
		return parsed
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return -1
		}
		return parsed
	}
	return defaultValue
}

// getDurationEnv returns -1 for a value that does not parse so Validate reports it.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return -1
		}
		return parsed
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks every setting and returns one Configuration error listing
// all failures. Settings that only matter for an unused backend are skipped.
func (c *Config) Validate() error {
	v := validation.NewFluentValidatorWithPrefix("config")

	v.ValidateIf(true, func() error {
		if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
		}
		return nil
	})
	v.RequireOneOf(strings.ToLower(c.LogFormat), []string{"json", "console"}, "LOG_FORMAT")
	v.ValidateIf((c.TLSCertFile == "") != (c.TLSKeyFile == ""), func() error {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	})

	v.RequireURL(c.DirectoryBaseURL, "DIRECTORY_BASE_URL")
	v.RequireString(c.DirectoryAPIToken, "DIRECTORY_API_TOKEN")
	v.RequireOneOf(c.DirectoryAuthScheme, []string{"SSWS", "Bearer"}, "DIRECTORY_AUTH_SCHEME")
	v.ValidateIf(c.DirectoryTimeout <= 0, func() error {
		return fmt.Errorf("DIRECTORY_TIMEOUT must be a positive duration")
	})
	v.ValidateIf(c.DirectoryRateLimit < 0, func() error {
		return fmt.Errorf("DIRECTORY_RATE_LIMIT must be zero or a positive number")
	})

	v.RequireOneOf(c.StorageBackend, []string{"memory", "redis"}, "STORAGE_BACKEND")
	v.ValidateIf(c.StorageBackend == "redis", func() error {
		if strings.TrimSpace(c.RedisAddress) == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when STORAGE_BACKEND is redis")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
		// dead-letter keys live under dead_letter:<prefix>
		if strings.HasPrefix("dead_letter:"+c.RedisKeyPrefix, c.RedisKeyPrefix) {
			return fmt.Errorf("REDIS_KEY_PREFIX must be set and must not overlap the dead_letter: namespace")
		}
		return nil
	})
	v.ValidateIf(c.DeadLetterTTL < 0, func() error {
		return fmt.Errorf("DEAD_LETTER_TTL must be a valid duration")
	})

	v.ValidateIf(len(c.KafkaBrokers) == 0, func() error {
		return fmt.Errorf("KAFKA_BROKERS is required")
	})
	v.RequireString(c.KafkaEnrichmentTopic, "KAFKA_ENRICHMENT_TOPIC")
	v.RequireString(c.KafkaDLQTopic, "KAFKA_DLQ_TOPIC")
	v.RequireString(c.KafkaConsumerGroup, "KAFKA_CONSUMER_GROUP")
	v.ValidateIf(c.KafkaEnrichmentTopic != "" && c.KafkaEnrichmentTopic == c.KafkaDLQTopic, func() error {
		return fmt.Errorf("KAFKA_DLQ_TOPIC must differ from KAFKA_ENRICHMENT_TOPIC")
	})
	v.ValidateIf(c.KafkaPublishTimeout <= 0, func() error {
		return fmt.Errorf("KAFKA_PUBLISH_TIMEOUT must be a positive duration")
	})

	v.RequirePositive(c.RetryMaxAttempts, "RETRY_MAX_ATTEMPTS")
	v.ValidateIf(c.RetryInitialDelay <= 0 || c.RetryMaxDelay < c.RetryInitialDelay, func() error {
		return fmt.Errorf("RETRY_INITIAL_DELAY must be positive and not exceed RETRY_MAX_DELAY")
	})
	v.RequirePositive(c.WorkerLaneBuffer, "WORKER_LANE_BUFFER")
	v.ValidateIf(c.WorkerShutdownGrace <= 0, func() error {
		return fmt.Errorf("WORKER_SHUTDOWN_GRACE must be a positive duration")
	})

	return v.Error()
}

// DirectoryConfigured reports whether directory credentials are present
func (c *Config) DirectoryConfigured() bool {
	return strings.TrimSpace(c.DirectoryBaseURL) != "" && strings.TrimSpace(c.DirectoryAPIToken) != ""
}
