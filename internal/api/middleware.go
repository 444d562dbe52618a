package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/session"
)

const (
	unknownIP        = "0.0.0.0"
	unknownUserAgent = "Unknown"
)

type (
	userCtxKey struct{}
	jarCtxKey  struct{}
)

// UserFromContext returns the user resolved from the session cookie.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(*auth.User)
	return u, ok && u != nil
}

// RequestIDExtractor adds the chi request id to log records.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		d := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		if h.metrics != nil {
			h.metrics.ObserveRequest(r.Method, route, status, d)
		}
		h.logger.DebugContext(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("duration", d),
		)
	})
}

// loadUser resolves the session cookie into a user. Missing or stale
// sessions leave the request anonymous.
func (h *Handler) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jar := h.cookies.Jar(w, r)
		r = r.WithContext(context.WithValue(r.Context(), jarCtxKey{}, jar))

		payload, ok := h.sessions.GetSession(r.Context(), jar)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(payload.UserID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.users.FindUserByID(r.Context(), id)
		if err != nil {
			if !errors.Is(err, auth.ErrUserNotFound) {
				h.logger.ErrorContext(r.Context(), "failed to load session user",
					logger.Component("api"),
					logger.UserID(id),
					logger.Error(err),
				)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, user)))
	})
}

func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			failure(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// startSession writes a fresh session for user bound to the caller's
// address and user agent.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *auth.User) bool {
	ip := h.ips.IP(r)
	if ip == "" {
		ip = unknownIP
	}
	ua := r.UserAgent()
	if ua == "" {
		ua = unknownUserAgent
	}

	return h.sessions.SetSession(r.Context(), h.jar(w, r), session.SetParams{
		Data: session.Payload{
			UserID:    user.ID.String(),
			IPAddress: ip,
			UserAgent: ua,
		},
	})
}
