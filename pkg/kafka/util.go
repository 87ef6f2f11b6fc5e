// Package kafka provides Kafka helpers for the event mirror.
package kafka

import (
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// WriteTimeout is the maximum time to wait for a Kafka write operation.
	WriteTimeout = 10 * time.Second
	// BatchTimeout bounds how long the writer buffers before flushing a partial batch.
	BatchTimeout = 50 * time.Millisecond
)

// ParseBrokers parses a comma-separated broker list and trims whitespace.
// Empty entries are dropped.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	parts := strings.Split(brokers, ",")
	brokerList := make([]string, 0, len(parts))
	for _, b := range parts {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	return brokerList
}

// NewMirrorWriter creates the Kafka writer used to mirror published events.
// Messages are keyed by event type so one type stays on one partition.
func NewMirrorWriter(brokers []string, topic string) *kafka.Writer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: WriteTimeout,
		BatchTimeout: BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka mirror writer configured",
		"brokers", brokers,
		"topic", topic,
		"write_timeout", WriteTimeout,
		"batch_timeout", BatchTimeout,
		"required_acks", "RequireOne",
	)

	return writer
}
