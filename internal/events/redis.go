package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus publishes refresh signals on a Redis pub/sub channel so every
// console instance reloads after any instance's submission.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.SugaredLogger
}

// NewRedisBus connects to redisURL and verifies connectivity
func NewRedisBus(ctx context.Context, redisURL, channel string, logger *zap.SugaredLogger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisBus{client: client, channel: channel, logger: logger}, nil
}

// Publish encodes sig as JSON and publishes it.
func (b *RedisBus) Publish(ctx context.Context, sig Signal) error {
	if sig.At.IsZero() {
		sig.At = time.Now()
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

// Subscribe listens on the channel until ctx is done. Undecodable messages
// still count as a change notification.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Signal, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Signal, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var sig Signal
				if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
					b.logger.Warnw("Undecodable refresh signal", "channel", msg.Channel, "error", err)
					sig = Signal{Reason: ReasonManual, At: time.Now()}
				}
				select {
				case out <- sig:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Ping checks the Redis connection.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
