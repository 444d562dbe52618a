package auth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrymomot/authkit/pkg/config"
	"github.com/dmitrymomot/authkit/pkg/cookie"
)

// EnvDevelopment is the only environment where cookies default to insecure.
const EnvDevelopment = "development"

// Config is the flat configuration of an Instance.
type Config struct {
	Secret           string        `env:"AUTH_SECRET"`
	Origin           string        `env:"ORIGIN"`
	BaseCallbackPath string        `env:"AUTH_CALLBACK_PATH"`
	SessionName      string        `env:"SESSION_NAME"`
	SessionLifetime  time.Duration `env:"SESSION_LIFETIME"`
	// CookieSecure overrides the environment based default when set.
	CookieSecure   *bool  `env:"AUTH_COOKIE_SECURE"`
	CookiePath     string `env:"AUTH_COOKIE_PATH"`
	CookieDomain   string `env:"AUTH_COOKIE_DOMAIN"`
	CookieHTTPOnly bool   `env:"AUTH_COOKIE_HTTP_ONLY"`
	CookieSameSite string `env:"AUTH_COOKIE_SAME_SITE"`
	Environment    string `env:"APP_ENV"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Origin:           "http://localhost:5173",
		BaseCallbackPath: "auth/callback",
		SessionName:      "auth_session",
		SessionLifetime:  7 * 24 * time.Hour,
		CookiePath:       "/",
		CookieHTTPOnly:   true,
		CookieSameSite:   "lax",
		Environment:      EnvDevelopment,
	}
}

// LoadConfig applies environment variables over DefaultConfig.
func LoadConfig(opts ...config.Option) (Config, error) {
	cfg := DefaultConfig()
	if err := config.Into(&cfg, opts...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration errors that would otherwise surface at
// request time.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("origin %q must be an absolute url", c.Origin))
	}
	if c.SessionLifetime <= 0 {
		errs = append(errs, errors.New("session lifetime must be positive"))
	}
	if _, err := cookie.ParseSameSite(c.CookieSameSite); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SecureCookies reports whether cookies carry the Secure attribute.
func (c Config) SecureCookies() bool {
	if c.CookieSecure != nil {
		return *c.CookieSecure
	}
	return c.Environment != EnvDevelopment
}

// FlowCookieOptions is the part of the cookie policy that applies to the
// short-lived state, PKCE and verification cookies: Secure and Domain.
func (c Config) FlowCookieOptions() []cookie.Option {
	return []cookie.Option{
		cookie.WithDomain(c.CookieDomain),
		cookie.WithSecure(c.SecureCookies()),
	}
}

// CookieOptions converts the cookie fields into cookie options. An invalid
// SameSite value falls back to lax; Validate reports it.
func (c Config) CookieOptions() []cookie.Option {
	sameSite, err := cookie.ParseSameSite(c.CookieSameSite)
	if err != nil {
		sameSite, _ = cookie.ParseSameSite("lax")
	}

	path := c.CookiePath
	if path == "" {
		path = "/"
	}

	return []cookie.Option{
		cookie.WithPath(path),
		cookie.WithDomain(c.CookieDomain),
		cookie.WithSecure(c.SecureCookies()),
		cookie.WithHTTPOnly(c.CookieHTTPOnly),
		cookie.WithSameSite(sameSite),
	}
}
