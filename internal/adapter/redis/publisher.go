// Package redis publishes progress events to a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/heartmarshall/coursetrack-backend/internal/config"
	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// Publisher sends JSON-encoded progress events to one channel.
type Publisher struct {
	client  goredis.UniversalClient
	channel string
	log     *slog.Logger
}

// NewPublisher connects to Redis and verifies the connection with PING.
func NewPublisher(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newPublisher(client, cfg.Channel, log), nil
}

func newPublisher(client goredis.UniversalClient, channel string, log *slog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		log:     log.With("adapter", "redis"),
	}
}

// Publish encodes the event and publishes it.
func (p *Publisher) Publish(ctx context.Context, event domain.ProgressEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, raw).Result()
	if err != nil {
		return fmt.Errorf("publish progress event: %w", err)
	}

	p.log.DebugContext(ctx, "progress event published",
		slog.String("channel", p.channel),
		slog.String("kind", string(event.Kind)),
		slog.Int64("receivers", receivers),
	)
	return nil
}

// Ping reports whether Redis is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Noop discards events. It is used when no Redis address is configured.
type Noop struct{}

func (Noop) Publish(context.Context, domain.ProgressEvent) error { return nil }
