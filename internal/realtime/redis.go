package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "realtime:"

// RedisLayer bridges broadcast groups across instances over Redis
// pub/sub. Each group maps to one Redis channel; the subscriber loop
// feeds received messages back into the local hub.
type RedisLayer struct {
	client *redis.Client
	hub    *Hub
}

// NewRedisLayer creates a layer on an existing Redis client.
func NewRedisLayer(client *redis.Client, hub *Hub) *RedisLayer {
	return &RedisLayer{client: client, hub: hub}
}

// Publish sends a group message through Redis.
func (l *RedisLayer) Publish(ctx context.Context, group string, data []byte) error {
	if err := l.client.Publish(ctx, channelPrefix+group, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Run subscribes to all group channels and delivers incoming messages to
// local sessions until the context is cancelled.
func (l *RedisLayer) Run(ctx context.Context) {
	pubsub := l.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	log.Info().Msg("Redis channel layer subscribed")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			group := strings.TrimPrefix(msg.Channel, channelPrefix)
			l.hub.Deliver(group, []byte(msg.Payload))
		}
	}
}
