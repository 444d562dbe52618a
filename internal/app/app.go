package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/authkit/internal/api"
	"github.com/dmitrymomot/authkit/internal/store"
	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/clientip"
	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/email"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/metrics"
	"github.com/dmitrymomot/authkit/pkg/pg"
	"github.com/dmitrymomot/authkit/pkg/redis"
	"github.com/dmitrymomot/authkit/pkg/session"
)

// App owns the process resources: the Postgres pool, the optional Redis
// client and the session store.
type App struct {
	cfg     Config
	log     *slog.Logger
	pool    *pgxpool.Pool
	db      *sql.DB
	redis   *goredis.Client
	store   session.Store
	handler http.Handler
}

// New connects the backends and wires the HTTP handler. Close must be
// called once the app is no longer needed, also when New fails halfway.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return a, err
	}
	a.pool = pool
	a.db = pg.OpenDB(pool)

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = cookie.GenerateSecret()
		log.WarnContext(ctx, "AUTH_SECRET is empty, using an ephemeral secret; sessions will not survive a restart",
			logger.Component("app"),
		)
	}
	signer := cookie.NewSigner(secret)
	cookieOpts := cfg.Auth.CookieOptions()

	if err := a.openSessionStore(ctx); err != nil {
		return a, err
	}

	m := metrics.New(cfg.MetricsNamespace)
	sessions := metrics.InstrumentSessions(session.New(a.store, signer,
		session.WithName(cfg.Auth.SessionName),
		session.WithLifetime(cfg.Auth.SessionLifetime),
		session.WithCookieOptions(cookieOpts...),
		session.WithLogger(log),
	), m)

	users := store.New(a.db)

	sender, err := newEmailSender(cfg.Email)
	if err != nil {
		return a, err
	}
	password := auth.NewPassword(users, signer,
		auth.WithVerification(users, email.NewVerificationMailer(sender, cfg.Email.AppName), verifyURL(cfg.Auth.Origin)),
		auth.WithVerificationTTL(cfg.VerificationTTL),
		auth.WithVerificationCookie(auth.DefaultVerificationCookieName, cfg.Auth.FlowCookieOptions()...),
		auth.WithPasswordLogger(log),
	)

	providers, err := newProviders(ctx, cfg, log)
	if err != nil {
		return a, err
	}
	instanceOpts := append(providers,
		auth.WithPlugin(auth.ProviderPassword, password),
		auth.WithLogger(log),
	)
	instance := auth.New(cfg.Auth, sessions, instanceOpts...)

	health := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}
	if a.redis != nil {
		health["redis"] = redis.Healthcheck(a.redis)
	}

	opts := []api.Option{
		api.WithClientIP(clientip.New(cfg.ClientIPHeaders...)),
		api.WithLoginRateLimit(rate.Limit(cfg.LoginRate), cfg.LoginBurst),
		api.WithMockLogin(cfg.MockLogin && cfg.Auth.Environment == auth.EnvDevelopment),
	}
	if cfg.Registration {
		opts = append(opts, api.WithRegistration(cfg.EmailVerification))
	}

	a.handler = api.New(api.Deps{
		Auth:     instance,
		Users:    users,
		Password: password,
		Cookies:  cookie.New(cookieOpts...),
		Metrics:  m,
		Health:   health,
		Logger:   log,
	}, opts...).Router()

	log.InfoContext(ctx, "auth configured",
		logger.Component("app"),
		slog.String("session_backend", cfg.SessionBackend),
		slog.Any("providers", instance.AvailableProviders()),
		slog.Any("plugins", instance.AvailablePlugins()),
	)
	return a, nil
}

// Handler is the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP until ctx is cancelled. With the database backend expired
// sessions are swept every SweepInterval.
func (a *App) Run(ctx context.Context) error {
	srv := httpserver.NewFromConfig(a.cfg.HTTP, httpserver.WithLogger(a.log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, a.handler)
	})
	if sweeper, ok := a.store.(session.ExpiredSweeper); ok && a.cfg.SessionBackend == BackendDatabase {
		g.Go(func() error {
			a.sweep(ctx, sweeper)
			return nil
		})
	}
	return g.Wait()
}

// Close releases every resource New acquired.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.store.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}

func (a *App) openSessionStore(ctx context.Context) error {
	switch a.cfg.SessionBackend {
	case BackendRedis:
		client, err := redis.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		a.redis = client
		a.store = session.NewRedisStore(client, a.cfg.Auth.SessionName)
	case BackendDatabase:
		a.store = session.NewDatabaseStore(a.db)
	case BackendMemory:
		a.store = session.NewMemoryStore(a.cfg.SweepInterval)
	default:
		return fmt.Errorf("unknown session backend %q", a.cfg.SessionBackend)
	}
	return nil
}

func (a *App) sweep(ctx context.Context, sweeper session.ExpiredSweeper) {
	if a.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.DeleteExpired(ctx)
			if err != nil {
				a.log.ErrorContext(ctx, "failed to sweep expired sessions",
					logger.Component("app"),
					logger.Error(err),
				)
				continue
			}
			if n > 0 {
				a.log.DebugContext(ctx, "expired sessions swept",
					logger.Component("app"),
					slog.Int64("count", n),
				)
			}
		}
	}
}

// newProviders registers every IdP whose client id (or issuer, for OIDC)
// is configured.
func newProviders(ctx context.Context, cfg Config, log *slog.Logger) ([]auth.InstanceOption, error) {
	states := auth.NewStateStore(auth.WithStateCookieOptions(cfg.Auth.FlowCookieOptions()...))
	popts := []auth.ProviderOption{
		auth.WithStateStore(states),
		auth.WithProviderLogger(log),
	}

	var opts []auth.InstanceOption
	if cfg.Google.ClientID != "" {
		opts = append(opts, auth.WithProvider(auth.ProviderGoogle, auth.NewGoogle(cfg.Google, popts...)))
	}
	if cfg.GitHub.ClientID != "" {
		opts = append(opts, auth.WithProvider(auth.ProviderGitHub, auth.NewGitHub(cfg.GitHub, popts...)))
	}
	if cfg.OAuth2.ClientID != "" {
		opts = append(opts, auth.WithProvider(cfg.OAuth2.Name, auth.NewOAuth2(cfg.OAuth2, popts...)))
	}
	if cfg.OIDC.IssuerURL != "" {
		p, err := auth.NewOIDC(ctx, cfg.OIDC, popts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, auth.WithProvider(p.Name(), p))
	}
	return opts, nil
}

// newEmailSender picks Postmark when both tokens are set and the local file
// sender otherwise.
func newEmailSender(cfg email.Config) (email.EmailSender, error) {
	if cfg.UsePostmark() {
		return email.NewPostmarkClient(cfg)
	}
	return email.NewDevSender(cfg.DevDir), nil
}

func verifyURL(origin string) string {
	return strings.TrimRight(origin, "/") + "/auth/verify"
}
