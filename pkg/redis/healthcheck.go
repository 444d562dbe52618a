package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Healthcheck pings the server that backs the session store.
func Healthcheck(client redis.Cmdable) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrUnhealthy, err)
		}
		return nil
	}
}
