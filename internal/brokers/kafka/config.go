package kafka

import (
	"fmt"
	"strings"
	"time"
	"user-onboarding/internal/common/errors"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// Config holds the connection settings shared by the producer and the consumer.
type Config struct {
	Brokers          []string
	ClientID         string
	GroupID          string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	// PublishTimeout bounds a produce call and is passed to librdkafka as
	// message.timeout.ms
	PublishTimeout time.Duration
	Compression    string
	SessionTimeout time.Duration
	PollInterval   time.Duration
}

// Validate checks the config and fills defaults
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.ConfigError("Kafka brokers are required")
	}

	for _, broker := range c.Brokers {
		if strings.TrimSpace(broker) == "" {
			return errors.ConfigError("empty Kafka broker address")
		}
	}

	defaults := DefaultConfig()
	if c.ClientID == "" {
		c.ClientID = defaults.ClientID
	}

	if c.GroupID == "" {
		c.GroupID = defaults.GroupID
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaults.PublishTimeout
	}

	if c.SessionTimeout <= 0 {
		c.SessionTimeout = defaults.SessionTimeout
	}

	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}

	if c.Compression == "" {
		c.Compression = defaults.Compression
	}

	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}

	if !oneOf(c.Compression, "none", "gzip", "snappy", "lz4", "zstd") {
		return errors.ConfigError(fmt.Sprintf("invalid compression codec: %s", c.Compression))
	}

	if !oneOf(c.SecurityProtocol, "PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL") {
		return errors.ConfigError(fmt.Sprintf("invalid security protocol: %s", c.SecurityProtocol))
	}

	// Validate SASL mechanism if SASL is used
	if strings.HasPrefix(c.SecurityProtocol, "SASL_") {
		if c.SASLMechanism == "" {
			c.SASLMechanism = "PLAIN"
		}

		if !oneOf(c.SASLMechanism, "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512") {
			return errors.ConfigError(fmt.Sprintf("invalid SASL mechanism: %s", c.SASLMechanism))
		}

		if c.SASLUsername == "" || c.SASLPassword == "" {
			return errors.ConfigError("SASL username and password are required for SASL authentication")
		}
	}

	return nil
}

// GetConnectionString returns the bootstrap server list
func (c *Config) GetConnectionString() string {
	return strings.Join(c.Brokers, ",")
}

// DefaultConfig returns a local single-broker config
func DefaultConfig() *Config {
	return &Config{
		Brokers:          []string{"localhost:9092"},
		ClientID:         "user-onboarding",
		GroupID:          "user-enrichment-workers",
		SecurityProtocol: "PLAINTEXT",
		PublishTimeout:   5 * time.Second,
		Compression:      "snappy",
		SessionTimeout:   10 * time.Second,
		PollInterval:     100 * time.Millisecond,
	}
}

// ProducerConfigMap builds the librdkafka producer settings. Writes wait for
// all in-sync replicas and are idempotent.
func (c *Config) ProducerConfigMap() *kafka.ConfigMap {
	cm := c.baseConfigMap(c.ClientID)
	cm["acks"] = "all"
	cm["enable.idempotence"] = true
	cm["message.timeout.ms"] = int(c.PublishTimeout.Milliseconds())
	cm["compression.type"] = c.Compression
	return &cm
}

// ConsumerConfigMap builds the librdkafka consumer settings. Offsets are
// committed explicitly by the worker pool.
func (c *Config) ConsumerConfigMap() *kafka.ConfigMap {
	cm := c.baseConfigMap(c.ClientID + "-consumer")
	cm["group.id"] = c.GroupID
	cm["enable.auto.commit"] = false
	cm["enable.auto.offset.store"] = false
	cm["auto.offset.reset"] = "earliest"
	cm["session.timeout.ms"] = int(c.SessionTimeout.Milliseconds())
	return &cm
}

func (c *Config) baseConfigMap(clientID string) kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers": c.GetConnectionString(),
		"client.id":         clientID,
	}

	// Add security configuration
	if c.SecurityProtocol != "PLAINTEXT" {
		cm["security.protocol"] = c.SecurityProtocol
	}

	if strings.HasPrefix(c.SecurityProtocol, "SASL_") {
		cm["sasl.mechanism"] = c.SASLMechanism
		cm["sasl.username"] = c.SASLUsername
		cm["sasl.password"] = c.SASLPassword
	}
	return cm
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
