package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

// RedisPublisher appends notifications to a Redis stream per topic so
// consumers can read them with consumer groups.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	maxLen int64
}

func NewRedisPublisher(url, prefix string, maxLen int64) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisPublisher{client: client, prefix: prefix, maxLen: maxLen}, nil
}

func (p *RedisPublisher) Stream(topic string) string {
	return p.prefix + topic
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.Stream(topic),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":   event.EventID,
			"event_type": event.EventType,
			"severity":   string(event.Severity),
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", topic, err)
	}
	return nil
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
