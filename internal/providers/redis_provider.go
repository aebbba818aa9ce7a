package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

func NewRedisProvider(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

// ConnectRedis creates a client and checks the server answers within timeout.
// The client is returned even when the ping fails so callers can decide to
// run without it.
func ConnectRedis(ctx context.Context, addr, password string, timeout time.Duration) (*redis.Client, error) {
	rdb := NewRedisProvider(addr, password)
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return rdb, fmt.Errorf("redis %s: %w", addr, err)
	}
	return rdb, nil
}
