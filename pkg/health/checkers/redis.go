// Package checkers holds health.Check implementations for the service's
// external dependencies.
package checkers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings a Redis server.
type RedisChecker struct {
	client redis.UniversalClient
	name   string
}

// NewRedisChecker creates a Redis checker. An empty name defaults to "redis".
func NewRedisChecker(client redis.UniversalClient, name string) *RedisChecker {
	if name == "" {
		name = "redis"
	}
	return &RedisChecker{client: client, name: name}
}

// Name returns the check name.
func (r *RedisChecker) Name() string { return r.name }

// Check pings the server.
func (r *RedisChecker) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
