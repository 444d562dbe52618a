package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrymomot/authkit/pkg/logger"
)

// Check probes one dependency.
type Check func(context.Context) error

// HealthCheckHandler runs every check with a per-request timeout and reports
// {"status":"ok"|"fail","checks":{name:"ok"|error}}. Any failure answers 503.
// With no checks it is a plain liveness probe.
func HealthCheckHandler(log *slog.Logger, timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, name := range slices.Sorted(maps.Keys(checks)) {
			if err := checks[name](ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					logger.Component("healthcheck"),
					slog.String("check", name),
					logger.Error(err),
				)
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := map[string]any{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "fail"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
