package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects to the credential store. Socket timeouts match the per-operation bound
// so a hung connection surfaces as an error rather than a stalled request.
func NewRedis(ctx context.Context, redisURL string, opTimeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(BoundRedisOptions(opts, opTimeout))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("credential store connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// BoundRedisOptions applies the per-operation bound to the socket timeouts and makes the
// client honour context deadlines.
func BoundRedisOptions(opts *redis.Options, opTimeout time.Duration) *redis.Options {
	opts.DialTimeout = opTimeout
	opts.ReadTimeout = opTimeout
	opts.WriteTimeout = opTimeout
	opts.ContextTimeoutEnabled = true
	return opts
}
