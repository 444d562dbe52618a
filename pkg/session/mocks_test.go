package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/session"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, id string, data session.Payload, ttl time.Duration) error {
	args := m.Called(ctx, id, data, ttl)
	return args.Error(0)
}

func (m *MockStore) Load(ctx context.Context, id string) (session.Payload, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(session.Payload), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// roundTrip carries the cookies written by one response into a new request.
type roundTrip struct {
	w *httptest.ResponseRecorder
	r *http.Request
}

func newRoundTrip() *roundTrip {
	return &roundTrip{
		w: httptest.NewRecorder(),
		r: httptest.NewRequest(http.MethodGet, "/", nil),
	}
}

func (rt *roundTrip) jar() *cookie.HTTPJar {
	return cookie.NewHTTPJar(rt.w, rt.r, cookie.Defaults())
}

// next returns a round trip whose request carries every live cookie set so far.
func (rt *roundTrip) next() *roundTrip {
	live := make(map[string]string)
	for _, c := range rt.r.Cookies() {
		live[c.Name] = c.Value
	}
	for _, c := range rt.w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(live, c.Name)
			continue
		}
		live[c.Name] = c.Value
	}

	n := newRoundTrip()
	for name, value := range live {
		n.r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return n
}

func signerForTest() *cookie.Signer {
	return cookie.NewSigner("test-secret")
}

func sessionCookie(value string) *http.Cookie {
	return &http.Cookie{Name: session.DefaultName, Value: value}
}
