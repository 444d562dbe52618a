package pg

import (
	"context"
	"errors"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Healthcheck returns a probe suitable for the /healthz endpoint. It accepts
// a *pgxpool.Pool or anything else with a context-aware Ping.
func Healthcheck(conn pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := conn.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
