package session

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/authkit/pkg/cookie"
)

const (
	DefaultName     = "auth_session"
	DefaultLifetime = 7 * 24 * time.Hour
)

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithName sets the session cookie name, also used as the Redis key prefix
func WithName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.name = name
		}
	}
}

// WithLifetime sets how long a session stays valid in the store and the browser
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lifetime = d
		}
	}
}

// WithCookieOptions sets the cookie attributes used for the session cookie
func WithCookieOptions(opts ...cookie.Option) Option {
	return func(m *Manager) {
		m.cookieOpts = append(m.cookieOpts, opts...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
