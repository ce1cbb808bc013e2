package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const healthcheckTTL = 10 * time.Second

// Healthcheck returns a readiness check for the usage store. Besides PING it
// writes a short-lived "<prefix>:healthcheck" key, so a read-only replica or
// a full instance reports not ready.
func Healthcheck(client redis.UniversalClient, prefix string) func(context.Context) error {
	key := "healthcheck"
	if prefix != "" {
		key = prefix + ":" + key
	}
	return func(ctx context.Context) error {
		_, err := client.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.Ping(ctx)
			p.Set(ctx, key, time.Now().UTC().UnixMilli(), healthcheckTTL)
			return nil
		})
		if err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
