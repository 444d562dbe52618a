// Package redis connects to the Redis server backing session.RedisStore.
//
// Connect parses a redis:// URL and retries the initial PING, so a service
// started alongside its Redis container does not fail on the first attempt:
//
//	cfg, err := config.Load[redis.Config]()
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := session.NewRedisStore(client, "auth_session")
//
// Healthcheck wraps PING for readiness probes. Errors are sentinel values
// joined with the driver error, so both errors.Is(err, ErrNotReady) and
// the underlying cause are available.
package redis
