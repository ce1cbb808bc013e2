package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// Connect parses cfg.ConnectionURL and pings the server, retrying at a
// constant RetryInterval until ConnectTimeout elapses or RetryAttempts run out.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	b := retry.WithMaxRetries(uint64(max(cfg.RetryAttempts-1, 0)), retry.NewConstant(interval))

	var client *redis.Client
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		c := redis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return retry.RetryableError(err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrRedisNotReady, err)
	}
	return client, nil
}
