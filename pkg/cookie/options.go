package cookie

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Options is the attribute set written with every cookie.
type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	Expires  time.Time
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

type Option func(*Options)

func WithPath(path string) Option {
	return func(o *Options) {
		o.Path = path
	}
}

func WithDomain(domain string) Option {
	return func(o *Options) {
		o.Domain = domain
	}
}

// WithMaxAge sets the cookie lifetime in seconds.
func WithMaxAge(seconds int) Option {
	return func(o *Options) {
		o.MaxAge = seconds
	}
}

// WithLifetime sets both Max-Age and Expires from a duration.
func WithLifetime(d time.Duration) Option {
	return func(o *Options) {
		o.MaxAge = int(d / time.Second)
		o.Expires = time.Now().Add(d)
	}
}

func WithSecure(secure bool) Option {
	return func(o *Options) {
		o.Secure = secure
	}
}

func WithHTTPOnly(httpOnly bool) Option {
	return func(o *Options) {
		o.HttpOnly = httpOnly
	}
}

func WithSameSite(sameSite http.SameSite) Option {
	return func(o *Options) {
		o.SameSite = sameSite
	}
}

// Defaults is the baseline policy: path "/", httpOnly, lax.
func Defaults() Options {
	return Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Apply returns a copy of o with opts applied. o itself is not modified.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o Options) httpCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   o.MaxAge,
		Expires:  o.Expires,
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	}
}

// ParseSameSite maps "lax", "strict", "none" and "default" to http.SameSite.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	case "default":
		return http.SameSiteDefaultMode, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSameSite, s)
	}
}
