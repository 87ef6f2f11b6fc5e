// Package config provides configuration parsing and validation for the eventcore service.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all configuration parameters for the eventcore service.
type Config struct {
	PostgresDSN string
	RedisAddr   string

	KafkaBrokers string
	MirrorTopic  string

	BroadcastRedis bool
	BroadcastKafka bool

	HandlerTimeout    time.Duration
	RecoverLimit      int
	RuleCacheTTL      time.Duration
	ReprocessInterval time.Duration

	DeliveryWorkers   int
	DeliveryQueueSize int
	PushGatewayURL    string

	EmailEnabled bool
	EmailFrom    string
	AWSRegion    string
	ResendAPIKey string

	MetricsInterval time.Duration
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.BroadcastRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty when redis broadcast is enabled")
	}
	if c.BroadcastKafka {
		if c.KafkaBrokers == "" {
			return fmt.Errorf("kafka-brokers cannot be empty when kafka broadcast is enabled")
		}
		if c.MirrorTopic == "" {
			return fmt.Errorf("mirror-topic cannot be empty when kafka broadcast is enabled")
		}
	}
	if c.HandlerTimeout <= 0 {
		return fmt.Errorf("handler-timeout must be positive")
	}
	if c.RecoverLimit < 0 {
		return fmt.Errorf("recover-limit cannot be negative")
	}
	if c.RuleCacheTTL < 0 {
		return fmt.Errorf("rule-cache-ttl cannot be negative")
	}
	if c.ReprocessInterval < 0 {
		return fmt.Errorf("reprocess-interval cannot be negative")
	}
	if c.DeliveryWorkers <= 0 {
		return fmt.Errorf("delivery-workers must be positive")
	}
	if c.DeliveryQueueSize <= 0 {
		return fmt.Errorf("delivery-queue-size must be positive")
	}
	if c.PushGatewayURL != "" {
		u, err := url.Parse(c.PushGatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("push-gateway-url must be a valid HTTP/HTTPS URL")
		}
	}
	if c.EmailEnabled && c.EmailFrom == "" {
		return fmt.Errorf("email-from cannot be empty when email is enabled")
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics-interval must be positive")
	}
	return nil
}
