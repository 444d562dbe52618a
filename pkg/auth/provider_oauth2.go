package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/cookie"
)

// OAuth2Config describes a generic authorization code provider with a JSON
// userinfo endpoint. Claim field names default to the OIDC standard ones.
type OAuth2Config struct {
	Name         string   `env:"OAUTH2_NAME" envDefault:"oauth2"`
	ClientID     string   `env:"OAUTH2_CLIENT_ID"`
	ClientSecret string   `env:"OAUTH2_CLIENT_SECRET"`
	AuthURL      string   `env:"OAUTH2_AUTH_URL"`
	TokenURL     string   `env:"OAUTH2_TOKEN_URL"`
	UserInfoURL  string   `env:"OAUTH2_USERINFO_URL"`
	Scopes       []string `env:"OAUTH2_SCOPES" envSeparator:","`
	PKCE         bool     `env:"OAUTH2_PKCE" envDefault:"true"`

	IDField            string `env:"OAUTH2_ID_FIELD"`
	EmailField         string `env:"OAUTH2_EMAIL_FIELD"`
	EmailVerifiedField string `env:"OAUTH2_EMAIL_VERIFIED_FIELD"`
	NameField          string `env:"OAUTH2_NAME_FIELD"`
	PictureField       string `env:"OAUTH2_PICTURE_FIELD"`
}

// Validate reports the settings NewOAuth2 would panic on.
func (c OAuth2Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("OAUTH2_NAME is required"))
	}
	if c.AuthURL == "" || c.TokenURL == "" || c.UserInfoURL == "" {
		errs = append(errs, errors.New("OAUTH2_AUTH_URL, OAUTH2_TOKEN_URL and OAUTH2_USERINFO_URL are required"))
	}
	return errors.Join(errs...)
}

// OAuth2 is a configurable adapter for IdPs without a dedicated type.
type OAuth2 struct {
	flow   *oauthFlow
	fields OAuth2Config
}

var _ Provider = (*OAuth2)(nil)

// NewOAuth2 panics when the name or an endpoint is missing.
func NewOAuth2(cfg OAuth2Config, opts ...ProviderOption) *OAuth2 {
	if cfg.Name == "" {
		panic("auth: oauth2 provider name is required")
	}

	o := newProviderOptions(opts)
	endpoint := oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	if o.userInfoURL == "" {
		o.userInfoURL = cfg.UserInfoURL
	}
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" || o.userInfoURL == "" {
		panic(fmt.Sprintf("auth: oauth2 provider %q requires auth, token and userinfo urls", cfg.Name))
	}

	cfg.IDField = valueOr(cfg.IDField, "sub")
	cfg.EmailField = valueOr(cfg.EmailField, "email")
	cfg.EmailVerifiedField = valueOr(cfg.EmailVerifiedField, "email_verified")
	cfg.NameField = valueOr(cfg.NameField, "name")
	cfg.PictureField = valueOr(cfg.PictureField, "picture")

	return &OAuth2{
		flow: &oauthFlow{
			name: cfg.Name,
			conf: oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Scopes:       cfg.Scopes,
				Endpoint:     endpoint,
			},
			pkce:            cfg.PKCE,
			providerOptions: o,
		},
		fields: cfg,
	}
}

func (p *OAuth2) Name() string {
	return p.fields.Name
}

func (p *OAuth2) AuthenticationURL(jar cookie.Jar, params AuthURLParams) (*url.URL, error) {
	return p.flow.authenticationURL(jar, params)
}

func (p *OAuth2) AuthenticatedUser(ctx context.Context, jar cookie.Jar, params AuthorizeParams) (*AuthorizeResult, error) {
	tok, cs, err := p.flow.exchange(ctx, jar, params)
	if err != nil {
		return nil, err
	}

	var claims map[string]any
	if err := p.flow.getJSON(ctx, p.flow.userInfoURL, tok.AccessToken, &claims, nil); err != nil {
		return nil, p.flow.fail(ctx, "userinfo request failed", err)
	}

	email := claimString(claims, p.fields.EmailField)
	if email == "" {
		return nil, ErrUserInfoUnavailable
	}

	verified, _ := claims[p.fields.EmailVerifiedField].(bool)

	return p.flow.result(tok, cs, ProviderUser{
		ProviderUserID: claimString(claims, p.fields.IDField),
		Email:          email,
		EmailVerified:  verified,
		Name:           claimString(claims, p.fields.NameField),
		Picture:        claimString(claims, p.fields.PictureField),
	}), nil
}

// claimString reads a string or numeric claim.
func claimString(claims map[string]any, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
