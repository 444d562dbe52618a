package auth

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubConfig holds configuration for the GitHub provider.
type GitHubConfig struct {
	ClientID     string   `env:"GITHUB_CLIENT_ID"`
	ClientSecret string   `env:"GITHUB_CLIENT_SECRET"`
	Scopes       []string `env:"GITHUB_SCOPES" envSeparator:"," envDefault:"read:user,user:email"`
}

// GitHub signs users in with GitHub. The flow does not use PKCE. The
// profile and the email list are fetched concurrently since the profile
// email is empty when the user keeps it private.
type GitHub struct {
	flow *oauthFlow
}

var _ Provider = (*GitHub)(nil)

func NewGitHub(cfg GitHubConfig, opts ...ProviderOption) *GitHub {
	o := newProviderOptions(opts)

	endpoint := github.Endpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	if o.apiBaseURL == "" {
		o.apiBaseURL = githubAPIBaseURL
	}
	o.apiBaseURL = strings.TrimRight(o.apiBaseURL, "/")

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}

	return &GitHub{flow: &oauthFlow{
		name: ProviderGitHub,
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		providerOptions: o,
	}}
}

func (g *GitHub) Name() string {
	return ProviderGitHub
}

func (g *GitHub) AuthenticationURL(jar cookie.Jar, params AuthURLParams) (*url.URL, error) {
	return g.flow.authenticationURL(jar, params)
}

func (g *GitHub) AuthenticatedUser(ctx context.Context, jar cookie.Jar, params AuthorizeParams) (*AuthorizeResult, error) {
	tok, cs, err := g.flow.exchange(ctx, jar, params)
	if err != nil {
		return nil, err
	}

	var (
		user      ghUser
		emails    []ghEmail
		emailsErr error
	)

	header := http.Header{"Accept": {"application/vnd.github+json"}}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.flow.getJSON(egCtx, g.flow.apiBaseURL+"/user", tok.AccessToken, &user, header)
	})
	eg.Go(func() error {
		// The email list is optional when the profile carries a public email.
		emailsErr = g.flow.getJSON(egCtx, g.flow.apiBaseURL+"/user/emails", tok.AccessToken, &emails, header)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, g.flow.fail(ctx, "github user request failed", err)
	}

	email, verified := user.Email, false
	if email == "" {
		if emailsErr != nil {
			g.flow.logger.WarnContext(ctx, "github emails request failed",
				logger.Component("oauth"),
				logger.Provider(ProviderGitHub),
				logger.Error(emailsErr),
			)
		}
		email, verified = pickGitHubEmail(emails)
	} else {
		for _, e := range emails {
			if strings.EqualFold(e.Email, email) {
				verified = e.Verified
				break
			}
		}
	}

	if email == "" {
		return nil, ErrUserInfoUnavailable
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return g.flow.result(tok, cs, ProviderUser{
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Email:          email,
		EmailVerified:  verified,
		Name:           name,
		Picture:        user.AvatarURL,
	}), nil
}

// pickGitHubEmail prefers the primary verified address, then any verified one.
func pickGitHubEmail(emails []ghEmail) (string, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}
	return "", false
}

type ghUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type ghEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}
