package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis backs the cache with a shared redis instance so repeated analyses
// of the same document are served across processes.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the redis instance at the supplied URL
// (e.g. "redis://localhost:6379") and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Get returns the cached value; redis errors count as a miss.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).Debug("cache get")
		}
		return "", false
	}
	return value, true
}

// Set stores the value with the supplied TTL; errors are logged and dropped.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logrus.WithError(err).Debug("cache set")
	}
}

// Close releases the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
