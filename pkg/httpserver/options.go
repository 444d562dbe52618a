package httpserver

import (
	"log/slog"
	"time"
)

type Option func(*Server)

func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithTimeouts sets the read, write and idle timeouts. Zero values are
// ignored.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
	}
}

// WithShutdownTimeout bounds how long in-flight requests may take to finish.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStopHook registers fn to run after the listener has shut down, e.g.
// closing the Redis client or the database pool.
func WithStopHook(fn func()) Option {
	return func(s *Server) {
		if fn != nil {
			s.stopHooks = append(s.stopHooks, fn)
		}
	}
}
