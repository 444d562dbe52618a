package auth_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/session"
)

type stubProvider struct {
	name        string
	redirectURI string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthenticationURL(_ cookie.Jar, params auth.AuthURLParams) (*url.URL, error) {
	p.redirectURI = params.RedirectURI
	return url.Parse("https://idp.example.com/authorize?redirect_uri=" + url.QueryEscape(params.RedirectURI))
}

func (p *stubProvider) AuthenticatedUser(_ context.Context, _ cookie.Jar, params auth.AuthorizeParams) (*auth.AuthorizeResult, error) {
	p.redirectURI = params.RedirectURI
	return &auth.AuthorizeResult{User: auth.ProviderUser{Email: "a@example.com"}, State: "st"}, nil
}

type stubSessions struct{}

func (stubSessions) SetSession(context.Context, cookie.Jar, session.SetParams) bool { return true }
func (stubSessions) GetSession(context.Context, cookie.Jar) (session.Payload, bool) {
	return session.Payload{}, false
}
func (stubSessions) DeleteSession(context.Context, cookie.Jar) bool { return false }

type stubPlugin struct{}

func (stubPlugin) Login(context.Context, string, string) (*auth.User, error) { return nil, nil }

func TestNew_Panics(t *testing.T) {
	t.Parallel()

	cfg := auth.DefaultConfig()
	assert.Panics(t, func() { auth.New(cfg, nil) })
	assert.Panics(t, func() { auth.New(cfg, stubSessions{}, auth.WithProvider("x", nil)) })
	assert.Panics(t, func() { auth.New(cfg, stubSessions{}, auth.WithPlugin("x", nil)) })
	assert.Panics(t, func() {
		auth.New(cfg, stubSessions{},
			auth.WithProvider("google", &stubProvider{name: "google"}),
			auth.WithProvider("google", &stubProvider{name: "google"}),
		)
	})
}

func TestInstance_CallbackURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		origin, path, want string
	}{
		{"http://localhost:5173", "auth/callback", "http://localhost:5173/auth/callback/google"},
		{"http://localhost:5173/", "/auth/callback/", "http://localhost:5173/auth/callback/google"},
		{"https://app.example.com", "", "https://app.example.com/google"},
	}
	for _, tt := range tests {
		cfg := auth.DefaultConfig()
		cfg.Origin, cfg.BaseCallbackPath = tt.origin, tt.path
		inst := auth.New(cfg, stubSessions{})
		assert.Equal(t, tt.want, inst.CallbackURI("google"))
	}
}

func TestInstance_Providers(t *testing.T) {
	t.Parallel()

	google := &stubProvider{name: "google"}
	github := &stubProvider{name: "github"}
	inst := auth.New(auth.DefaultConfig(), stubSessions{},
		auth.WithProvider("google", google),
		auth.WithProvider("github", github),
		auth.WithPlugin("password", stubPlugin{}),
	)

	assert.Equal(t, []string{"github", "google"}, inst.AvailableProviders())
	assert.Equal(t, []string{"password"}, inst.AvailablePlugins())
	assert.True(t, inst.HasProvider("google"))
	assert.False(t, inst.HasProvider("apple"))
	_, ok := inst.Plugin("password")
	assert.True(t, ok)
	assert.NotNil(t, inst.Sessions())

	t.Run("default redirect uri", func(t *testing.T) {
		u, err := inst.GetAuthenticationURL("google", newMemJar(), auth.AuthURLParams{})
		require.NoError(t, err)
		assert.Contains(t, u, "idp.example.com")
		assert.Equal(t, "http://localhost:5173/auth/callback/google", google.redirectURI)
	})

	t.Run("explicit redirect uri", func(t *testing.T) {
		_, err := inst.GetAuthenticatedUser(context.Background(), "github", newMemJar(), auth.AuthorizeParams{RedirectURI: "http://x/cb"})
		require.NoError(t, err)
		assert.Equal(t, "http://x/cb", github.redirectURI)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := inst.GetAuthenticationURL("apple", newMemJar(), auth.AuthURLParams{})
		assert.ErrorIs(t, err, auth.ErrInvalidProvider)

		_, err = inst.GetAuthenticatedUser(context.Background(), "apple", newMemJar(), auth.AuthorizeParams{})
		assert.ErrorIs(t, err, auth.ErrInvalidProvider)
	})
}
