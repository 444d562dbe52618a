package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

// Provider is an OAuth identity provider adapter.
type Provider interface {
	// Name is the provider path segment used in callback URIs.
	Name() string
	// AuthenticationURL issues state (and a PKCE verifier when the flow uses
	// one) into jar and returns the IdP authorization URL.
	AuthenticationURL(jar cookie.Jar, params AuthURLParams) (*url.URL, error)
	// AuthenticatedUser consumes the state stored in jar, exchanges the code
	// and resolves the user profile. Errors are ErrInvalidCodeOrState,
	// ErrUserInfoUnavailable or *ProviderError.
	AuthenticatedUser(ctx context.Context, jar cookie.Jar, params AuthorizeParams) (*AuthorizeResult, error)
}

// TokenRevoker is implemented by providers that can revoke issued tokens.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, token string) error
}

type AuthURLParams struct {
	// State is generated when empty.
	State       string
	RedirectURI string
}

type AuthorizeParams struct {
	// URL is the full callback request URL including code and state.
	URL         *url.URL
	RedirectURI string
}

type AuthorizeResult struct {
	User  ProviderUser
	State string
}

const defaultHTTPTimeout = 10 * time.Second

type providerOptions struct {
	httpClient  *http.Client
	logger      *slog.Logger
	states      *StateStore
	endpoint    *oauth2.Endpoint
	userInfoURL string
	apiBaseURL  string
	revokeURL   string
	verifier    idTokenVerifier
}

// ProviderOption configures a provider adapter.
type ProviderOption func(*providerOptions)

func WithHTTPClient(c *http.Client) ProviderOption {
	return func(o *providerOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

func WithProviderLogger(l *slog.Logger) ProviderOption {
	return func(o *providerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStateStore replaces the default state cookie store.
func WithStateStore(s *StateStore) ProviderOption {
	return func(o *providerOptions) {
		if s != nil {
			o.states = s
		}
	}
}

// WithEndpoint overrides the authorization and token endpoints.
func WithEndpoint(e oauth2.Endpoint) ProviderOption {
	return func(o *providerOptions) {
		o.endpoint = &e
	}
}

// WithUserInfoURL overrides the profile endpoint.
func WithUserInfoURL(u string) ProviderOption {
	return func(o *providerOptions) {
		o.userInfoURL = u
	}
}

// WithAPIBaseURL overrides the REST API root, e.g. for GitHub Enterprise.
func WithAPIBaseURL(u string) ProviderOption {
	return func(o *providerOptions) {
		o.apiBaseURL = u
	}
}

// WithRevokeURL overrides the token revocation endpoint.
func WithRevokeURL(u string) ProviderOption {
	return func(o *providerOptions) {
		o.revokeURL = u
	}
}

func newProviderOptions(opts []ProviderOption) *providerOptions {
	o := &providerOptions{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.states == nil {
		o.states = NewStateStore()
	}
	return o
}

// oauthFlow is the authorization code flow shared by all adapters.
type oauthFlow struct {
	name     string
	conf     oauth2.Config
	pkce     bool
	authOpts []oauth2.AuthCodeOption
	*providerOptions
}

func (f *oauthFlow) authenticationURL(jar cookie.Jar, params AuthURLParams) (*url.URL, error) {
	state := params.State
	if state == "" {
		state = GenerateState()
	}

	opts := slices.Clone(f.authOpts)
	var verifier string
	if f.pkce {
		verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	f.states.Issue(jar, state, verifier)

	conf := f.conf
	conf.RedirectURL = params.RedirectURI

	u, err := url.Parse(conf.AuthCodeURL(state, opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s authorization url: %w", f.name, err)
	}
	return u, nil
}

// exchange consumes state and trades the code for a token.
func (f *oauthFlow) exchange(ctx context.Context, jar cookie.Jar, params AuthorizeParams) (*oauth2.Token, *CallbackState, error) {
	cs, ok := f.states.Consume(params.URL, jar)
	if !ok || (f.pkce && cs.CodeVerifier == "") {
		return nil, nil, ErrInvalidCodeOrState
	}

	conf := f.conf
	conf.RedirectURL = params.RedirectURI

	var opts []oauth2.AuthCodeOption
	if f.pkce {
		opts = append(opts, oauth2.VerifierOption(cs.CodeVerifier))
	}

	tok, err := conf.Exchange(f.clientContext(ctx), cs.Code, opts...)
	if err != nil {
		return nil, nil, f.fail(ctx, "code exchange failed", err)
	}

	return tok, cs, nil
}

func (f *oauthFlow) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

// fail logs an upstream error and converts it into a *ProviderError.
func (f *oauthFlow) fail(ctx context.Context, msg string, err error) *ProviderError {
	pe := newProviderError(f.name, err)
	f.logger.ErrorContext(ctx, msg,
		logger.Component("oauth"),
		logger.Provider(f.name),
		logger.Error(err),
	)
	return pe
}

// getJSON performs an authenticated GET and decodes a JSON response.
func (f *oauthFlow) getJSON(ctx context.Context, endpoint, accessToken string, dest any, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s api returned status %d", f.name, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

func (f *oauthFlow) result(tok *oauth2.Token, cs *CallbackState, user ProviderUser) *AuthorizeResult {
	user.AccessToken = tok.AccessToken
	user.RefreshToken = tok.RefreshToken
	user.Email = NormalizeEmail(user.Email)
	return &AuthorizeResult{User: user, State: cs.State}
}
