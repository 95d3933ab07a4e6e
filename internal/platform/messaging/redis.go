package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

// Redis publishes change-feed envelopes on Redis pub/sub channels named
// prefix+topic.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedis(rawURL string, prefix string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: redis.NewClient(opts),
		prefix: prefix,
		logger: logger,
	}, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.prefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe pattern-subscribes when topic contains "*". Redis has no consumer
// groups on pub/sub; consumerGroup is only logged.
func (r *Redis) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	channel := r.prefix + topic
	var sub *redis.PubSub
	if strings.Contains(topic, "*") {
		sub = r.client.PSubscribe(ctx, channel)
	} else {
		sub = r.client.Subscribe(ctx, channel)
	}
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	go func() {
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event ports.EventEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.Error("redis envelope decode failed",
						"event", "redis_consume_decode_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"channel", msg.Channel,
						"error", err.Error(),
					)
					continue
				}
				if err := handler(ctx, event); err != nil {
					r.logger.Error("consumer handler failed",
						"event", "redis_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"channel", msg.Channel,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
