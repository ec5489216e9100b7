// Package cache wraps the Redis client used for per-IP rate limiting and
// audit events.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis sits on the /signup and /token path and every caller fails open, so
// calls are bounded tightly: a slow Redis costs a login at most ~0.5s.
const (
	dialTimeout  = time.Second
	ioTimeout    = 200 * time.Millisecond
	poolTimeout  = 500 * time.Millisecond
	maxRetries   = 1
	poolSize     = 10
	minIdleConns = 2
)

// Cache holds the shared Redis client.
type Cache struct {
	client *redis.Client
}

// New parses redisURL, applies the timeouts above unless the URL sets its
// own, and verifies the connection.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	applyDefaults(opt)

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// applyDefaults fills options that ParseURL left at their zero value.
func applyDefaults(opt *redis.Options) {
	if opt.DialTimeout == 0 {
		opt.DialTimeout = dialTimeout
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = ioTimeout
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = ioTimeout
	}
	if opt.PoolTimeout == 0 {
		opt.PoolTimeout = poolTimeout
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = maxRetries
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = poolSize
	}
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = minIdleConns
	}
	opt.ConnMaxIdleTime = 5 * time.Minute
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Client exposes the underlying client for stream publishers.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
