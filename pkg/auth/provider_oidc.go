package auth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/cookie"
)

type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// WithIDTokenVerifier makes Google and OIDC providers check ID token
// signatures, issuer, audience and expiry.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) ProviderOption {
	return func(o *providerOptions) {
		if v != nil {
			o.verifier = v
		}
	}
}

// OIDCConfig describes an OpenID Connect provider found through discovery.
type OIDCConfig struct {
	Name         string   `env:"OIDC_NAME" envDefault:"oidc"`
	IssuerURL    string   `env:"OIDC_ISSUER_URL"`
	ClientID     string   `env:"OIDC_CLIENT_ID"`
	ClientSecret string   `env:"OIDC_CLIENT_SECRET"`
	Scopes       []string `env:"OIDC_SCOPES" envSeparator:"," envDefault:"openid,profile,email"`
}

// OIDC is a provider discovered from an issuer's
// /.well-known/openid-configuration document. It uses PKCE and verifies
// every ID token.
type OIDC struct {
	name     string
	flow     *oauthFlow
	provider *oidc.Provider
}

var _ Provider = (*OIDC)(nil)

// NewOIDC runs discovery against cfg.IssuerURL.
func NewOIDC(ctx context.Context, cfg OIDCConfig, opts ...ProviderOption) (*OIDC, error) {
	if cfg.Name == "" {
		cfg.Name = "oidc"
	}

	o := newProviderOptions(opts)
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, o.httpClient), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider %q: %w", cfg.Name, err)
	}

	if o.verifier == nil {
		o.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	}

	endpoint := provider.Endpoint()
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDC{
		name: cfg.Name,
		flow: &oauthFlow{
			name: cfg.Name,
			conf: oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Scopes:       scopes,
				Endpoint:     endpoint,
			},
			pkce:            true,
			providerOptions: o,
		},
		provider: provider,
	}, nil
}

func (p *OIDC) Name() string {
	return p.name
}

func (p *OIDC) AuthenticationURL(jar cookie.Jar, params AuthURLParams) (*url.URL, error) {
	return p.flow.authenticationURL(jar, params)
}

func (p *OIDC) AuthenticatedUser(ctx context.Context, jar cookie.Jar, params AuthorizeParams) (*AuthorizeResult, error) {
	tok, cs, err := p.flow.exchange(ctx, jar, params)
	if err != nil {
		return nil, err
	}

	var claims oidcClaims
	if raw, _ := tok.Extra("id_token").(string); raw != "" {
		idt, err := p.flow.verifier.Verify(p.flow.clientContext(ctx), raw)
		if err != nil {
			return nil, p.flow.fail(ctx, "invalid id token", err)
		}
		if err := idt.Claims(&claims); err != nil {
			return nil, p.flow.fail(ctx, "invalid id token claims", err)
		}
	}

	if claims.Email == "" {
		info, err := p.provider.UserInfo(p.flow.clientContext(ctx), oauth2.StaticTokenSource(tok))
		if err != nil {
			return nil, p.flow.fail(ctx, "userinfo request failed", err)
		}
		if err := info.Claims(&claims); err != nil {
			return nil, p.flow.fail(ctx, "invalid userinfo claims", err)
		}
	}

	if claims.Email == "" {
		return nil, ErrUserInfoUnavailable
	}

	return p.flow.result(tok, cs, ProviderUser{
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified,
		Name:           claims.Name,
		Picture:        claims.Picture,
	}), nil
}

type oidcClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}
