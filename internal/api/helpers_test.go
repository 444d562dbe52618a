package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/authkit/internal/api"
	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/metrics"
	"github.com/dmitrymomot/authkit/pkg/session"
)

const testIdP = "https://idp.test/authorize"

// memUsers is an in-memory auth.UserStorage keyed by email.
type memUsers struct {
	mu     sync.Mutex
	users  map[string]*auth.User
	verifs *memVerifications
}

func newMemUsers(verifs *memVerifications) *memUsers {
	return &memUsers{users: make(map[string]*auth.User), verifs: verifs}
}

func (m *memUsers) FindUserByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindUserByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) CreateUser(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return auth.ErrUserAlreadyExists
	}
	cp := *user
	m.users[user.Email] = &cp
	return nil
}

func (m *memUsers) UpdateUser(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.Email] = &cp
	return nil
}

func (m *memUsers) UpsertUserByEmail(_ context.Context, user *auth.User) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[user.Email]; ok {
		existing.Name = user.Name
		existing.Image = user.Image
		existing.AccessToken = user.AccessToken
		existing.RefreshToken = user.RefreshToken
		if !existing.IsVerified() && user.IsVerified() {
			existing.EmailVerifiedAt = user.EmailVerifiedAt
			existing.PasswordHash = ""
			existing.Provider = user.Provider
			if m.verifs != nil {
				m.verifs.deleteByEmail(user.Email)
			}
		}
		cp := *existing
		return &cp, nil
	}
	cp := *user
	m.users[user.Email] = &cp
	return user, nil
}

func (m *memUsers) get(email string) *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email]
}

// memVerifications is an in-memory auth.VerificationStorage.
type memVerifications struct {
	mu    sync.Mutex
	items map[uuid.UUID]*auth.Verification
}

func newMemVerifications() *memVerifications {
	return &memVerifications{items: make(map[uuid.UUID]*auth.Verification)}
}

func (m *memVerifications) CreateVerification(_ context.Context, v *auth.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Email == v.Email {
			return auth.ErrVerificationStillExists
		}
	}
	cp := *v
	m.items[v.ID] = &cp
	return nil
}

func (m *memVerifications) FindVerificationByToken(_ context.Context, token string) (*auth.Verification, error) {
	return m.find(func(v *auth.Verification) bool { return v.Token == token })
}

func (m *memVerifications) FindVerificationByEmail(_ context.Context, email string) (*auth.Verification, error) {
	return m.find(func(v *auth.Verification) bool { return v.Email == email })
}

func (m *memVerifications) find(match func(*auth.Verification) bool) (*auth.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.items {
		if match(v) {
			cp := *v
			return &cp, nil
		}
	}
	return nil, auth.ErrVerificationNotFound
}

func (m *memVerifications) DeleteVerification(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return auth.ErrVerificationNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memVerifications) deleteByEmail(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.items {
		if v.Email == email {
			delete(m.items, id)
		}
	}
}

// linkMailer records the last verification link.
type linkMailer struct {
	mu   sync.Mutex
	link string
}

func (m *linkMailer) SendVerification(_ context.Context, _, link string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link = link
	return nil
}

func (m *linkMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link
}

// stubProvider imitates an IdP. The callback code selects the outcome:
// "ok" succeeds, "bad" fails the state check, anything else is a provider
// error. The state is echoed from the query like a real IdP would.
type stubProvider struct {
	name string
	user auth.ProviderUser
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthenticationURL(jar cookie.Jar, params auth.AuthURLParams) (*url.URL, error) {
	jar.Set("state", params.State)
	u, _ := url.Parse(testIdP)
	u.RawQuery = url.Values{"state": {params.State}, "redirect_uri": {params.RedirectURI}}.Encode()
	return u, nil
}

func (p *stubProvider) AuthenticatedUser(_ context.Context, jar cookie.Jar, params auth.AuthorizeParams) (*auth.AuthorizeResult, error) {
	q := params.URL.Query()
	stored, ok := jar.Get("state")
	if !ok || stored != q.Get("state") {
		return nil, auth.ErrInvalidCodeOrState
	}
	jar.Delete("state")

	switch q.Get("code") {
	case "ok":
		return &auth.AuthorizeResult{User: p.user, State: q.Get("state")}, nil
	case "bad":
		return nil, auth.ErrInvalidCodeOrState
	default:
		return nil, &auth.ProviderError{Provider: p.name, Code: "access_denied", Message: "The user denied access"}
	}
}

type fixture struct {
	server  *httptest.Server
	client  *http.Client
	users   *memUsers
	verifs  *memVerifications
	mailer  *linkMailer
	store   *session.MemoryStore
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()

	verifs := newMemVerifications()
	f := &fixture{
		users:   newMemUsers(verifs),
		verifs:  verifs,
		mailer:  &linkMailer{},
		store:   session.NewMemoryStore(0),
		metrics: metrics.New("test"),
	}

	signer := cookie.NewSigner("test-secret")
	sessions := metrics.InstrumentSessions(session.New(f.store, signer), f.metrics)
	password := auth.NewPassword(f.users, signer,
		auth.WithSaltRounds(bcrypt.MinCost),
		auth.WithVerification(f.verifs, f.mailer, "http://localhost/auth/verify"),
	)

	cfg := auth.DefaultConfig()
	cfg.Origin = "http://localhost"
	instance := auth.New(cfg, sessions,
		auth.WithProvider("github", &stubProvider{
			name: "github",
			user: auth.ProviderUser{
				Email:         "octo@example.com",
				EmailVerified: true,
				Name:          "Octo Cat",
				AccessToken:   "gho_token",
			},
		}),
		auth.WithPlugin(auth.ProviderPassword, password),
	)

	h := api.New(api.Deps{
		Auth:     instance,
		Users:    f.users,
		Password: password,
		Cookies:  cookie.New(),
		Metrics:  f.metrics,
	}, opts...)

	f.server = httptest.NewServer(h.Router())
	t.Cleanup(f.server.Close)
	t.Cleanup(func() { _ = f.store.Close() })

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := f.client.PostForm(f.server.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := f.client.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// oauthLogin runs the provider redirect and returns the callback path the
// IdP would send the browser to with code.
func (f *fixture) oauthLogin(t *testing.T, redirectTo, code string) string {
	t.Helper()
	path := "/auth/login/github"
	if redirectTo != "" {
		path += "?redirectTo=" + url.QueryEscape(redirectTo)
	}
	resp := f.get(t, path)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	q := url.Values{"code": {code}, "state": {loc.Query().Get("state")}}
	return "/auth/callback/github?" + q.Encode()
}

func (f *fixture) seedPasswordUser(t *testing.T, email, password string, verified bool) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()
	u := &auth.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Seeded",
		Provider:     auth.ProviderPassword,
		Role:         auth.RoleUser,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if verified {
		u.EmailVerifiedAt = &now
	}
	require.NoError(t, f.users.CreateUser(context.Background(), u))
	return u
}

func decodeResponse(t *testing.T, resp *http.Response) api.Response {
	t.Helper()
	var body api.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func loginError(t *testing.T, resp *http.Response) string {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/auth/login", loc.Path)
	return loc.Query().Get("error")
}
