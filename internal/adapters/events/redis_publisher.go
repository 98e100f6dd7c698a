package events

import (
	"context"
	"encoding/json"
	"fmt"

	"microcredit/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes committed ledger events on a Redis channel, one
// JSON envelope per message.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

// NewRedisPublisher creates a publisher for channel
func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends events in order and stops at the first failure
func (p *RedisPublisher) Publish(ctx context.Context, events []domain.EventEnvelope) error {
	for _, event := range events {
		body, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", event.Name, err)
		}
		if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
			return fmt.Errorf("publish event %s: %w", event.Name, err)
		}
	}
	return nil
}
