package httpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dmitrymomot/authkit/pkg/logger"
)

// Server runs an http.Server until its context is cancelled, then drains
// in-flight requests.
type Server struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	stopHooks       []func()
}

func New(opts ...Option) *Server {
	s := &Server{
		addr:            ":8080",
		readTimeout:     15 * time.Second,
		writeTimeout:    30 * time.Second,
		idleTimeout:     120 * time.Second,
		shutdownTimeout: 10 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run listens on the configured address and serves handler until ctx is
// done. Signal handling is left to the caller (signal.NotifyContext).
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Join(ErrStart, err)
	}
	return s.Serve(ctx, ln, handler)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.InfoContext(ctx, "http server started",
		logger.Component("httpserver"),
		slog.String("addr", ln.Addr().String()),
	)

	select {
	case err := <-errCh:
		s.runStopHooks()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Join(ErrStart, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	<-errCh
	s.runStopHooks()

	s.logger.InfoContext(ctx, "http server stopped", logger.Component("httpserver"))
	if err != nil {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}

func (s *Server) runStopHooks() {
	for _, fn := range s.stopHooks {
		fn()
	}
}
