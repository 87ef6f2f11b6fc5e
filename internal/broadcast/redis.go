package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pilarhub/eventcore/internal/events"
)

// redisPublisher is the subset of *redis.Client used here.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes events on Pub/Sub channel "events:{type}".
type Redis struct {
	client redisPublisher
}

// NewRedis creates a Redis broadcaster.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Broadcast publishes e as JSON. Having no subscribers is not an error.
func (r *Redis) Broadcast(ctx context.Context, e *events.Event) error {
	body, err := json.Marshal(NewMessage(e))
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}

	channel := Channel(e.Type)
	receivers, err := r.client.Publish(ctx, channel, body).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis channel %s: %w", channel, err)
	}

	slog.Debug("Event mirrored to Redis",
		"event_id", e.ID,
		"channel", channel,
		"receivers", receivers,
	)
	return nil
}
