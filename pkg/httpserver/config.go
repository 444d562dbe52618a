package httpserver

import "time"

type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// NewFromConfig creates a Server from cfg. Zero fields keep the defaults;
// opts are applied last.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	all := []Option{
		WithAddr(cfg.Addr),
		WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}
	return New(append(all, opts...)...)
}
