package app

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/config"
	"github.com/dmitrymomot/authkit/pkg/email"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/pg"
	"github.com/dmitrymomot/authkit/pkg/redis"
)

// Session backends.
const (
	BackendRedis    = "redis"
	BackendDatabase = "database"
	BackendMemory   = "memory"
)

// Config is the process configuration, read from the environment and an
// optional .env file.
type Config struct {
	ServiceName    string        `env:"SERVICE_NAME" envDefault:"authkit"`
	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"database"`
	SweepInterval  time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"10m"`

	Registration      bool          `env:"AUTH_REGISTRATION" envDefault:"true"`
	EmailVerification bool          `env:"AUTH_EMAIL_VERIFICATION" envDefault:"true"`
	VerificationTTL   time.Duration `env:"AUTH_VERIFICATION_TTL" envDefault:"6m"`
	MockLogin         bool          `env:"AUTH_MOCK_LOGIN" envDefault:"false"`
	LoginRate         float64       `env:"AUTH_LOGIN_RATE" envDefault:"1"`
	LoginBurst        int           `env:"AUTH_LOGIN_BURST" envDefault:"5"`
	ClientIPHeaders   []string      `env:"CLIENT_IP_HEADERS" envSeparator:","`
	MetricsNamespace  string        `env:"METRICS_NAMESPACE" envDefault:"authkit"`

	Log      logger.Config
	Auth     auth.Config
	HTTP     httpserver.Config
	Postgres pg.Config
	Redis    redis.Config
	Email    email.Config
	Google   auth.GoogleConfig
	GitHub   auth.GitHubConfig
	OIDC     auth.OIDCConfig
	OAuth2   auth.OAuth2Config
}

// LoadConfig reads the environment over the documented defaults.
func LoadConfig(opts ...config.Option) (Config, error) {
	cfg := Config{Auth: auth.DefaultConfig()}
	if err := config.Into(&cfg, opts...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	errs := []error{c.Auth.Validate(), c.Log.Validate()}

	switch c.SessionBackend {
	case BackendRedis, BackendDatabase, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.SessionBackend))
	}
	if c.Auth.Secret == "" && c.Auth.Environment != auth.EnvDevelopment {
		errs = append(errs, errors.New("AUTH_SECRET is required outside development"))
	}
	if c.OAuth2.ClientID != "" {
		errs = append(errs, c.OAuth2.Validate())
		taken := []string{auth.ProviderGoogle, auth.ProviderGitHub, auth.ProviderPassword}
		if c.OIDC.IssuerURL != "" {
			taken = append(taken, c.OIDC.Name)
		}
		if slices.Contains(taken, c.OAuth2.Name) {
			errs = append(errs, fmt.Errorf("OAUTH2_NAME %q collides with another provider", c.OAuth2.Name))
		}
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		errs = append(errs, errors.New("login rate and burst must be positive"))
	}

	return errors.Join(errs...)
}
