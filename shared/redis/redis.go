package redis

import (
	"context"
	"time"

	"campus-taskhub/backend/pkg/config"

	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client used for profile lookup caching
type Client struct {
	client *redis.Client
}

// NewClient creates a redis client from application configuration
func NewClient() *Client {
	cfg := config.Get()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &Client{client: client}
}

func (r *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *Client) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *Client) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// Ping verifies connectivity, used by the health checker
func (r *Client) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
