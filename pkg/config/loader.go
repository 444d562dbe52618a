package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

type options struct {
	prefix      string
	files       []string
	environment map[string]string
}

// Option tunes a single Load call.
type Option func(*options)

// WithPrefix parses variables named <prefix><NAME>.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvFiles loads the given .env files instead of the default ./.env.
// Missing files are an error.
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.files = append(o.files, files...) }
}

// WithEnvironment parses from m instead of the process environment.
func WithEnvironment(m map[string]string) Option {
	return func(o *options) { o.environment = m }
}

// Load parses environment variables into a new T using its `env` and
// `envDefault` struct tags. The default ./.env file is read once per process
// if present; variables already set in the environment win.
//
//	type RedisConfig struct {
//		URL string `env:"REDIS_URL,required"`
//	}
//
//	cfg, err := config.Load[RedisConfig]()
func Load[T any](opts ...Option) (T, error) {
	var cfg T
	err := Into(&cfg, opts...)
	return cfg, err
}

// Into parses into an existing value. Fields without a matching variable and
// without envDefault keep their current value.
func Into[T any](v *T, opts ...Option) error {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.files) > 0 {
		if err := godotenv.Load(o.files...); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
	} else if o.environment == nil {
		defaultEnvLoaded.Do(func() {
			// The .env file is optional.
			_ = godotenv.Load()
		})
	}

	if err := env.ParseWithOptions(v, env.Options{
		Prefix:      o.prefix,
		Environment: o.environment,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}
