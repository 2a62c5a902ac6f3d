package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes to a channel every instance's Bridge listens on.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

// Bridge relays events from the Redis channel to a local publisher.
type Bridge struct {
	client  *redis.Client
	channel string
	local   Publisher
	logger  *slog.Logger
}

func NewBridge(client *redis.Client, channel string, local Publisher, logger *slog.Logger) *Bridge {
	return &Bridge{client: client, channel: channel, local: local, logger: logger}
}

// Run blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.relay(ctx, msg.Payload)
		}
	}
}

func (b *Bridge) relay(ctx context.Context, payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		b.logger.Warn("discard malformed broadcast", "channel", b.channel, "error", err)
		return
	}
	if err := b.local.Publish(ctx, event); err != nil {
		b.logger.Warn("relay broadcast failed", "type", event.Type, "error", err)
	}
}
