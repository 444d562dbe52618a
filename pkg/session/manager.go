package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

// Manager implements SessionManager on top of a Store. The cookie carries
// only the signed session id; the payload lives in the store.
type Manager struct {
	store      Store
	signer     *cookie.Signer
	name       string
	lifetime   time.Duration
	cookieOpts []cookie.Option
	logger     *slog.Logger
}

var _ SessionManager = (*Manager)(nil)

// New creates a session manager. It panics when store or signer is nil.
func New(store Store, signer *cookie.Signer, opts ...Option) *Manager {
	if store == nil {
		panic("session: store is required")
	}
	if signer == nil {
		panic("session: signer is required")
	}

	m := &Manager{
		store:    store,
		signer:   signer,
		name:     DefaultName,
		lifetime: DefaultLifetime,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Name returns the session cookie name.
func (m *Manager) Name() string {
	return m.name
}

// Lifetime returns the configured session lifetime.
func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}

// SetSession persists the payload first and sets the cookie only after the
// store accepted it.
func (m *Manager) SetSession(ctx context.Context, jar cookie.Jar, params SetParams) bool {
	id := params.SessionID
	if id == "" {
		var err error
		if id, err = GenerateID(); err != nil {
			m.logger.ErrorContext(ctx, "failed to generate session id",
				logger.Component("session"),
				logger.Error(err),
			)
			return false
		}
	}

	if err := m.store.Save(ctx, id, params.Data, m.lifetime); err != nil {
		m.logger.ErrorContext(ctx, "failed to save session",
			logger.Component("session"),
			logger.UserID(params.Data.UserID),
			logger.Error(err),
		)
		return false
	}

	jar.Set(m.name, m.signer.Sign(id), m.setOptions()...)
	return true
}

// GetSession resolves the payload behind the session cookie. A cookie with a
// bad signature, or one pointing at a missing or expired record, is removed.
func (m *Manager) GetSession(ctx context.Context, jar cookie.Jar) (Payload, bool) {
	id, ok := m.sessionID(jar)
	if !ok {
		return Payload{}, false
	}

	data, err := m.store.Load(ctx, id)
	switch {
	case err == nil:
		return data, true
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired):
		jar.Delete(m.name, m.cookieOpts...)
	default:
		m.logger.ErrorContext(ctx, "failed to load session",
			logger.Component("session"),
			logger.Error(err),
		)
	}

	return Payload{}, false
}

// DeleteSession clears the cookie and the backing record. It reports false
// when the request carried no valid session.
func (m *Manager) DeleteSession(ctx context.Context, jar cookie.Jar) bool {
	id, ok := m.sessionID(jar)
	if !ok {
		return false
	}

	jar.Delete(m.name, m.cookieOpts...)

	if err := m.store.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.logger.ErrorContext(ctx, "failed to delete session",
				logger.Component("session"),
				logger.Error(err),
			)
		}
		return false
	}

	return true
}

// RevokeUser removes every session of userID when the store supports it.
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	r, ok := m.store.(UserRevoker)
	if !ok {
		return ErrRevokeUnsupported
	}
	return r.DeleteByUserID(ctx, userID)
}

// sessionID reads and verifies the cookie, deleting it when the signature
// does not match.
func (m *Manager) sessionID(jar cookie.Jar) (string, bool) {
	raw, ok := jar.Get(m.name)
	if !ok {
		return "", false
	}

	id, ok := m.signer.Verify(raw)
	if !ok {
		jar.Delete(m.name, m.cookieOpts...)
		return "", false
	}

	return id, true
}

func (m *Manager) setOptions() []cookie.Option {
	opts := make([]cookie.Option, 0, len(m.cookieOpts)+1)
	opts = append(opts, m.cookieOpts...)
	return append(opts, cookie.WithLifetime(m.lifetime))
}
