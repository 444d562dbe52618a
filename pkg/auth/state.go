package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/authkit/pkg/cookie"
)

const (
	DefaultStateTTL = 10 * time.Minute

	defaultStateName        = "state"
	defaultCodeName         = "code"
	defaultCodeVerifierName = "codeVerifier"
)

// CallbackState is what a successful Consume extracts from a callback.
type CallbackState struct {
	Code         string
	State        string
	StoredState  string
	CodeVerifier string
}

// StateStore keeps the OAuth CSRF state and PKCE verifier in short-lived
// cookies between the redirect to the IdP and the callback.
type StateStore struct {
	stateName        string
	codeName         string
	codeVerifierName string
	ttl              time.Duration
	cookieOpts       []cookie.Option
}

type StateOption func(*StateStore)

// WithStateNames overrides the state cookie/query name, the code query name
// and the verifier cookie name. Empty values keep the defaults.
func WithStateNames(state, code, codeVerifier string) StateOption {
	return func(s *StateStore) {
		if state != "" {
			s.stateName = state
		}
		if code != "" {
			s.codeName = code
		}
		if codeVerifier != "" {
			s.codeVerifierName = codeVerifier
		}
	}
}

func WithStateTTL(ttl time.Duration) StateOption {
	return func(s *StateStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStateCookieOptions sets extra attributes, typically Secure, for the
// state cookies.
func WithStateCookieOptions(opts ...cookie.Option) StateOption {
	return func(s *StateStore) {
		s.cookieOpts = append(s.cookieOpts, opts...)
	}
}

func NewStateStore(opts ...StateOption) *StateStore {
	s := &StateStore{
		stateName:        defaultStateName,
		codeName:         defaultCodeName,
		codeVerifierName: defaultCodeVerifierName,
		ttl:              DefaultStateTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue stores state and, when non-empty, the PKCE verifier.
func (s *StateStore) Issue(jar cookie.Jar, state, codeVerifier string) {
	opts := s.options(cookie.WithMaxAge(int(s.ttl / time.Second)))
	jar.Set(s.stateName, state, opts...)
	if codeVerifier != "" {
		jar.Set(s.codeVerifierName, codeVerifier, opts...)
	}
}

// Consume validates the callback against the stored state. Both cookies are
// removed only on success, so a replayed callback fails.
func (s *StateStore) Consume(u *url.URL, jar cookie.Jar) (*CallbackState, bool) {
	if u == nil {
		return nil, false
	}

	q := u.Query()
	code := q.Get(s.codeName)
	state := q.Get(s.stateName)
	stored, _ := jar.Get(s.stateName)
	verifier, _ := jar.Get(s.codeVerifierName)

	if code == "" || state == "" || stored == "" {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(stored)) != 1 {
		return nil, false
	}

	jar.Delete(s.stateName, s.options()...)
	jar.Delete(s.codeVerifierName, s.options()...)

	return &CallbackState{
		Code:         code,
		State:        state,
		StoredState:  stored,
		CodeVerifier: verifier,
	}, true
}

// options applies the caller's policy first; path, httpOnly and SameSite
// are fixed and cannot be overridden by it.
func (s *StateStore) options(extra ...cookie.Option) []cookie.Option {
	opts := append([]cookie.Option{}, s.cookieOpts...)
	opts = append(opts, flowCookieAttrs...)
	return append(opts, extra...)
}

// flowCookieAttrs are enforced on the state, PKCE verifier and verification
// cookies.
var flowCookieAttrs = []cookie.Option{
	cookie.WithPath("/"),
	cookie.WithHTTPOnly(true),
	cookie.WithSameSite(http.SameSiteLaxMode),
}

// GenerateState returns 32 random bytes as unpadded base64url.
func GenerateState() string {
	return randomToken()
}

// randReader is swapped in tests.
var randReader io.Reader = rand.Reader

// randomToken panics when the system random source fails, like
// cookie.GenerateSecret.
func randomToken() string {
	b := make([]byte, 32)
	if _, err := io.ReadFull(randReader, b); err != nil {
		panic(fmt.Errorf("auth: read random bytes: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
