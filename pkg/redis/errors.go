package redis

import "errors"

// Connection errors. Failures from the server are joined to these.
var (
	ErrNoConnectionURL      = errors.New("redis: REDIS_URL is not set")
	ErrInvalidConnectionURL = errors.New("redis: invalid connection url")
	ErrNotReady             = errors.New("redis: server not ready")
	ErrUnhealthy            = errors.New("redis: ping failed")
)
