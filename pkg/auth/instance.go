package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/session"
)

// Instance binds the configured providers, plugins and the session manager.
// It is immutable after New and safe for concurrent use.
type Instance struct {
	cfg       Config
	sessions  session.SessionManager
	providers map[string]Provider
	plugins   map[string]Plugin
	logger    *slog.Logger
}

type InstanceOption func(*Instance)

// WithProvider registers p under key. Registering a nil provider or reusing
// a key panics.
func WithProvider(key string, p Provider) InstanceOption {
	return func(i *Instance) {
		if p == nil {
			panic(fmt.Sprintf("auth: provider %q is nil", key))
		}
		if _, ok := i.providers[key]; ok {
			panic(fmt.Sprintf("auth: provider %q registered twice", key))
		}
		i.providers[key] = p
	}
}

// WithPlugin registers p under key with the same rules as WithProvider.
func WithPlugin(key string, p Plugin) InstanceOption {
	return func(i *Instance) {
		if p == nil {
			panic(fmt.Sprintf("auth: plugin %q is nil", key))
		}
		if _, ok := i.plugins[key]; ok {
			panic(fmt.Sprintf("auth: plugin %q registered twice", key))
		}
		i.plugins[key] = p
	}
}

func WithLogger(l *slog.Logger) InstanceOption {
	return func(i *Instance) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an Instance. It panics when sessions is nil.
func New(cfg Config, sessions session.SessionManager, opts ...InstanceOption) *Instance {
	if sessions == nil {
		panic("auth: session manager is required")
	}

	i := &Instance{
		cfg:       cfg,
		sessions:  sessions,
		providers: make(map[string]Provider),
		plugins:   make(map[string]Plugin),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// GetAuthenticationURL delegates to the provider registered under key.
// An empty RedirectURI is replaced with CallbackURI of the provider.
func (i *Instance) GetAuthenticationURL(key string, jar cookie.Jar, params AuthURLParams) (string, error) {
	p, ok := i.providers[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, key)
	}
	if params.RedirectURI == "" {
		params.RedirectURI = i.CallbackURI(p.Name())
	}

	u, err := p.AuthenticationURL(jar, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// GetAuthenticatedUser completes the callback for the provider under key.
// It neither stores the user nor creates a session.
func (i *Instance) GetAuthenticatedUser(ctx context.Context, key string, jar cookie.Jar, params AuthorizeParams) (*AuthorizeResult, error) {
	p, ok := i.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, key)
	}
	if params.RedirectURI == "" {
		params.RedirectURI = i.CallbackURI(p.Name())
	}

	res, err := p.AuthenticatedUser(ctx, jar, params)
	if err != nil {
		i.logger.WarnContext(ctx, "oauth callback failed",
			logger.Component("auth"),
			logger.Provider(key),
			logger.Error(err),
		)
		return nil, err
	}
	return res, nil
}

// CallbackURI returns origin/baseCallbackPath/name with duplicate slashes
// trimmed.
func (i *Instance) CallbackURI(name string) string {
	origin := strings.TrimRight(i.cfg.Origin, "/")
	path := strings.Trim(i.cfg.BaseCallbackPath, "/")
	if path == "" {
		return origin + "/" + name
	}
	return origin + "/" + path + "/" + name
}

// AvailableProviders returns the registered provider keys, sorted.
func (i *Instance) AvailableProviders() []string {
	return slices.Sorted(maps.Keys(i.providers))
}

// AvailablePlugins returns the registered plugin keys, sorted.
func (i *Instance) AvailablePlugins() []string {
	return slices.Sorted(maps.Keys(i.plugins))
}

func (i *Instance) HasProvider(key string) bool {
	_, ok := i.providers[key]
	return ok
}

func (i *Instance) Provider(key string) (Provider, bool) {
	p, ok := i.providers[key]
	return p, ok
}

func (i *Instance) Plugin(key string) (Plugin, bool) {
	p, ok := i.plugins[key]
	return p, ok
}

func (i *Instance) Sessions() session.SessionManager {
	return i.sessions
}

func (i *Instance) Config() Config {
	return i.cfg
}
