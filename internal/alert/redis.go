package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyellow/airquality-linebot-go/internal/config"
	"github.com/redis/go-redis/v9"
)

// publisher is the part of redis.Client used by RedisSink.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisSink publishes events on a Redis pub/sub channel.
type RedisSink struct {
	client  publisher
	channel string
}

// NewRedisSink connects lazily to the configured Redis server.
func NewRedisSink(cfg config.AlertConfig) *RedisSink {
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
		channel: cfg.Topic,
	}
}

func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error { return s.client.Close() }

func (s *RedisSink) Name() string { return "redis" }
