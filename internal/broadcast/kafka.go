package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pilarhub/eventcore/internal/events"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka mirrors events to a topic. The key is the event type; the value is a
// protobuf google.protobuf.Struct holding the Message fields.
type Kafka struct {
	writer messageWriter
	topic  string
}

// NewKafka wraps a configured writer.
func NewKafka(writer *kafka.Writer) *Kafka {
	return &Kafka{writer: writer, topic: writer.Topic}
}

// EncodeStruct converts the mirrored body of e to a structpb.Struct. The
// payload goes through JSON first so any JSON-encodable value is accepted.
func EncodeStruct(e *events.Event) (*structpb.Struct, error) {
	data, err := json.Marshal(NewMessage(e))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mirror body: %w", err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to build mirror struct: %w", err)
	}
	return st, nil
}

func buildMessage(e *events.Event) (kafka.Message, error) {
	st, err := EncodeStruct(e)
	if err != nil {
		return kafka.Message{}, err
	}
	value, err := proto.Marshal(st)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal mirror protobuf: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.Type),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "origin_module", Value: []byte(e.OriginModule)},
		},
		Time: e.CreatedAt,
	}, nil
}

// Broadcast writes e to the mirror topic and waits for the leader ack.
func (k *Kafka) Broadcast(ctx context.Context, e *events.Event) error {
	msg, err := buildMessage(e)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	slog.Debug("Event mirrored to Kafka", "event_id", e.ID, "topic", k.topic)
	return nil
}

// Close gracefully closes the Kafka writer.
func (k *Kafka) Close() error {
	slog.Info("Closing Kafka mirror writer", "topic", k.topic)
	if err := k.writer.Close(); err != nil {
		slog.Error("Error closing Kafka mirror writer", "error", err)
		return err
	}
	return nil
}
