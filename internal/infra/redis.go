package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout = 3 * time.Second
	redisOpTimeout   = 2 * time.Second
)

// NewRedisClient configures a Redis client from url and verifies connectivity.
// Timeouts given in the URL win over the defaults applied here.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if !hasParam(url, "dial_timeout") {
		opt.DialTimeout = redisDialTimeout
	}
	if !hasParam(url, "read_timeout") {
		opt.ReadTimeout = redisOpTimeout
	}
	if !hasParam(url, "write_timeout") {
		opt.WriteTimeout = redisOpTimeout
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}

	return client, nil
}
