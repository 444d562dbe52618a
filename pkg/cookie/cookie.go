package cookie

import (
	"net/http"
	"sync"
	"time"
)

// Jar is the per-request cookie surface the auth components work with.
// Get reflects Set and Delete calls made earlier on the same jar.
type Jar interface {
	Get(name string) (string, bool)
	Set(name, value string, opts ...Option)
	Delete(name string, opts ...Option)
}

// Manager holds the default cookie policy and hands out request jars.
type Manager struct {
	defaults Options
}

func New(opts ...Option) *Manager {
	return &Manager{defaults: Defaults().Apply(opts...)}
}

// Defaults returns the manager's cookie policy.
func (m *Manager) Defaults() Options {
	return m.defaults
}

// Jar binds a jar to one request/response pair.
func (m *Manager) Jar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	return NewHTTPJar(w, r, m.defaults)
}

// HTTPJar reads cookies from the request and writes them to the response.
type HTTPJar struct {
	w        http.ResponseWriter
	r        *http.Request
	defaults Options

	mu      sync.Mutex
	pending map[string]*string // nil value marks a deletion
}

var _ Jar = (*HTTPJar)(nil)

func NewHTTPJar(w http.ResponseWriter, r *http.Request, defaults Options) *HTTPJar {
	return &HTTPJar{
		w:        w,
		r:        r,
		defaults: defaults,
		pending:  make(map[string]*string),
	}
}

func (j *HTTPJar) Get(name string) (string, bool) {
	j.mu.Lock()
	v, touched := j.pending[name]
	j.mu.Unlock()

	if touched {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	if j.r == nil {
		return "", false
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *HTTPJar) Set(name, value string, opts ...Option) {
	options := j.defaults.Apply(opts...)

	j.mu.Lock()
	j.pending[name] = &value
	j.mu.Unlock()

	http.SetCookie(j.w, options.httpCookie(name, value))
}

// Delete expires the cookie. Path and domain options must match the ones it
// was set with.
func (j *HTTPJar) Delete(name string, opts ...Option) {
	options := j.defaults.Apply(opts...)
	options.MaxAge = -1
	options.Expires = time.Unix(0, 0)

	j.mu.Lock()
	j.pending[name] = nil
	j.mu.Unlock()

	http.SetCookie(j.w, options.httpCookie(name, ""))
}
