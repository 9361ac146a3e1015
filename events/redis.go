package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/vanity-name-registrar/api"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// DefaultChannel is the pub/sub channel events are published on.
const DefaultChannel = "vns:events"

// Publisher is the subset of the go-redis client used by RedisPublisher.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes events as api.EventMessage JSON on a Redis channel.
type RedisPublisher struct {
	client  Publisher
	channel string
	timeout time.Duration
	log     *slog.Logger
}

func NewRedisPublisher(client Publisher, channel string, log *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		log:     log,
	}
}

// Publish implements interfaces.EventSink.
func (p *RedisPublisher) Publish(ctx context.Context, event interfaces.Event) error {
	payload, err := json.Marshal(api.NewEventMessage(event))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	p.log.Debug("Event published",
		slog.String("channel", p.channel),
		slog.Uint64("seq", event.Seq),
		slog.Int64("receivers", receivers))
	return nil
}

// DialRedis connects to the Redis server at url and verifies the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Subscribe decodes events published by RedisPublisher on channel and calls fn
// for each one until ctx is cancelled.
func Subscribe(ctx context.Context, client *redis.Client, channel string, fn func(interfaces.Event)) error {
	if channel == "" {
		channel = DefaultChannel
	}

	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var decoded api.EventMessage
			if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			fn(decoded.Event())
		}
	}
}
