package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/clientip"
	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/metrics"
	"github.com/dmitrymomot/authkit/pkg/session"
)

const (
	defaultLoginRate  = rate.Limit(1)
	defaultLoginBurst = 5
	healthTimeout     = 3 * time.Second
)

// Deps are the collaborators the routes need. Password, Metrics and Health
// are optional.
type Deps struct {
	Auth     *auth.Instance
	Users    auth.UserStorage
	Password *auth.Password
	Cookies  *cookie.Manager
	Metrics  *metrics.Metrics
	Health   map[string]httpserver.Check
	Logger   *slog.Logger
}

// Paths are the browser-facing locations the handlers redirect to.
type Paths struct {
	Login     string
	Dashboard string
	Home      string
}

// Handler serves the authentication routes.
type Handler struct {
	auth     *auth.Instance
	sessions session.SessionManager
	users    auth.UserStorage
	password *auth.Password
	cookies  *cookie.Manager
	metrics  *metrics.Metrics
	health   map[string]httpserver.Check
	logger   *slog.Logger
	validate *validator.Validate
	ips      *clientip.Resolver
	limiter  *keyedLimiter
	paths    Paths

	registration      bool
	emailVerification bool
	mockLogin         bool
}

type Option func(*Handler)

// WithPaths overrides the redirect targets. Empty fields keep defaults.
func WithPaths(p Paths) Option {
	return func(h *Handler) {
		if p.Login != "" {
			h.paths.Login = p.Login
		}
		if p.Dashboard != "" {
			h.paths.Dashboard = p.Dashboard
		}
		if p.Home != "" {
			h.paths.Home = p.Home
		}
	}
}

// WithClientIP sets the resolver used for session payloads and rate limit
// keys. Defaults to RemoteAddr only.
func WithClientIP(r *clientip.Resolver) Option {
	return func(h *Handler) {
		if r != nil {
			h.ips = r
		}
	}
}

// WithLoginRateLimit limits password login attempts per client IP.
func WithLoginRateLimit(limit rate.Limit, burst int) Option {
	return func(h *Handler) {
		h.limiter = newKeyedLimiter(limit, burst)
	}
}

// WithRegistration enables POST /auth/register. When verify is true new
// accounts must confirm their email before they get a session.
func WithRegistration(verify bool) Option {
	return func(h *Handler) {
		h.registration = true
		h.emailVerification = verify
	}
}

// WithMockLogin enables POST /auth/mock, which signs in any email without
// credentials. Development only.
func WithMockLogin(enabled bool) Option {
	return func(h *Handler) {
		h.mockLogin = enabled
	}
}

// New builds the handler. Panics when Auth, Users or Cookies is missing.
func New(deps Deps, opts ...Option) *Handler {
	if deps.Auth == nil || deps.Users == nil || deps.Cookies == nil {
		panic("api: Auth, Users and Cookies are required")
	}

	h := &Handler{
		auth:     deps.Auth,
		sessions: deps.Auth.Sessions(),
		users:    deps.Users,
		password: deps.Password,
		cookies:  deps.Cookies,
		metrics:  deps.Metrics,
		health:   deps.Health,
		logger:   deps.Logger,
		validate: newValidator(),
		ips:      clientip.New(),
		limiter:  newKeyedLimiter(defaultLoginRate, defaultLoginBurst),
		paths: Paths{
			Login:     "/auth/login",
			Dashboard: "/dashboard",
			Home:      "/",
		},
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts every route on a new chi router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)
	r.Use(h.loadUser)

	if h.health != nil {
		r.Get("/healthz", httpserver.HealthCheckHandler(h.logger, healthTimeout, h.health))
	}
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login/{provider}", h.providerLogin)
		r.Get("/callback/{provider}", h.callback)
		r.Post("/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Get("/me", h.me)
			r.Post("/password", h.changePassword)
		})

		if len(h.auth.AvailablePlugins()) > 0 {
			r.Post("/login", h.passwordLogin)
		}
		if h.password != nil && h.registration {
			r.Post("/register", h.register)
			if h.emailVerification {
				r.Get("/verify", h.verify)
				r.Get("/verify/status", h.verificationStatus)
				r.Post("/verify/refresh", h.refreshVerification)
			}
		}
		if h.mockLogin {
			r.Post("/mock", h.mock)
		}
	})

	return r
}

// jar returns the request's cookie jar. Sharing one jar per request keeps
// writes made by earlier middleware visible to the handler.
func (h *Handler) jar(w http.ResponseWriter, r *http.Request) *cookie.HTTPJar {
	if j, ok := r.Context().Value(jarCtxKey{}).(*cookie.HTTPJar); ok {
		return j
	}
	return h.cookies.Jar(w, r)
}

func (h *Handler) recordLogin(method string, ok bool) {
	if h.metrics != nil {
		h.metrics.Login(method, ok)
	}
}

func (h *Handler) recordVerification(event string, ok bool) {
	if h.metrics != nil {
		h.metrics.Verification(event, ok)
	}
}
