package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

const (
	DefaultVerificationTTL        = 6 * time.Minute
	DefaultVerificationCookieName = "verification"
)

// VerificationMailer delivers the verification link.
type VerificationMailer interface {
	SendVerification(ctx context.Context, email, link string, expiresAt time.Time) error
}

// VerificationInfo is the content of the signed verification cookie.
type VerificationInfo struct {
	Email      string    `json:"email"`
	Expiration time.Time `json:"expiration"`
}

// RegisterParams describes a new credential-based account.
type RegisterParams struct {
	Email             string
	Password          string
	Name              string
	EmailVerification bool
}

// RegisterResult carries the created user. Verification is nil when email
// verification was not requested.
type RegisterResult struct {
	User         *User
	Verification *VerificationInfo
}

// Password is the email and password login plugin with optional email
// verification.
type Password struct {
	users           UserStorage
	verifications   VerificationStorage
	mailer          VerificationMailer
	verifyURL       string
	signer          *cookie.Signer
	saltRounds      int
	verificationTTL time.Duration
	cookieName      string
	cookieOpts      []cookie.Option
	now             func() time.Time
	logger          *slog.Logger
}

var _ Plugin = (*Password)(nil)

type PasswordOption func(*Password)

// WithVerification enables email verification. verifyURL is the absolute URL
// of the verify endpoint; the token is appended as the "token" query value.
func WithVerification(storage VerificationStorage, mailer VerificationMailer, verifyURL string) PasswordOption {
	return func(p *Password) {
		p.verifications = storage
		p.mailer = mailer
		p.verifyURL = verifyURL
	}
}

// WithSaltRounds sets the bcrypt cost for this plugin.
func WithSaltRounds(rounds int) PasswordOption {
	return func(p *Password) {
		if rounds > 0 {
			p.saltRounds = rounds
		}
	}
}

func WithVerificationTTL(ttl time.Duration) PasswordOption {
	return func(p *Password) {
		if ttl > 0 {
			p.verificationTTL = ttl
		}
	}
}

func WithVerificationCookie(name string, opts ...cookie.Option) PasswordOption {
	return func(p *Password) {
		if name != "" {
			p.cookieName = name
		}
		p.cookieOpts = append(p.cookieOpts, opts...)
	}
}

func WithPasswordLogger(l *slog.Logger) PasswordOption {
	return func(p *Password) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) PasswordOption {
	return func(p *Password) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPassword creates the plugin. It panics when users or signer is nil.
func NewPassword(users UserStorage, signer *cookie.Signer, opts ...PasswordOption) *Password {
	if users == nil {
		panic("auth: user storage is required")
	}
	if signer == nil {
		panic("auth: signer is required")
	}

	p := &Password{
		users:           users,
		signer:          signer,
		saltRounds:      DefaultSaltRounds,
		verificationTTL: DefaultVerificationTTL,
		cookieName:      DefaultVerificationCookieName,
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Login checks credentials for identifier (an email address).
func (p *Password) Login(ctx context.Context, identifier, password string) (*User, error) {
	user, err := p.users.FindUserByEmail(ctx, NormalizeEmail(identifier))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, ErrPasswordNotSet
	}

	ok, err := ComparePassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPassword
	}

	return user, nil
}

// Register creates a password account. With EmailVerification the user
// starts unverified, a token is stored, the signed verification cookie is
// set and the link is mailed.
func (p *Password) Register(ctx context.Context, jar cookie.Jar, params RegisterParams) (*RegisterResult, error) {
	if params.EmailVerification && p.verifications == nil {
		return nil, ErrVerificationDisabled
	}

	email := NormalizeEmail(params.Email)
	if _, err := p.users.FindUserByEmail(ctx, email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	hash, err := hashPassword(params.Password, p.saltRounds)
	if err != nil {
		return nil, err
	}

	now := p.now()
	name := params.Name
	if name == "" {
		name = email
	}

	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Provider:     ProviderPassword,
		Role:         RoleUser,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !params.EmailVerification {
		user.EmailVerifiedAt = &now
	}

	if err := p.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	result := &RegisterResult{User: user}
	if params.EmailVerification {
		info, err := p.issueVerification(ctx, jar, user)
		if err != nil {
			return nil, err
		}
		result.Verification = info
	}

	return result, nil
}

// RefreshVerification issues a new token for email once the previous one
// has expired.
func (p *Password) RefreshVerification(ctx context.Context, jar cookie.Jar, email string) (*VerificationInfo, error) {
	if p.verifications == nil {
		return nil, ErrVerificationDisabled
	}

	email = NormalizeEmail(email)
	user, err := p.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user.IsVerified() {
		return nil, ErrEmailAlreadyVerified
	}

	existing, err := p.verifications.FindVerificationByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsExpired(p.now()) {
			return nil, ErrVerificationStillExists
		}
		if existing.UserID != user.ID {
			return nil, ErrVerificationOwnerMismatch
		}
		if err := p.verifications.DeleteVerification(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to delete stale verification: %w", err)
		}
	case !errors.Is(err, ErrVerificationNotFound):
		return nil, fmt.Errorf("failed to find verification: %w", err)
	}

	return p.issueVerification(ctx, jar, user)
}

// Verify redeems token. The verification cookie must be present and bound
// to the same email and expiration as the stored token, and the token
// unexpired. A cookie left from a superseded token is a binding mismatch.
func (p *Password) Verify(ctx context.Context, jar cookie.Jar, token string) (*User, error) {
	info, ok := p.VerificationCookie(jar)
	if !ok {
		return nil, ErrNoVerificationCookie
	}

	v, err := p.verifications.FindVerificationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to find verification: %w", err)
	}

	if NormalizeEmail(v.Email) != NormalizeEmail(info.Email) {
		return nil, ErrVerificationEmailMismatch
	}

	now := p.now()
	if v.IsExpired(now) {
		return nil, ErrVerificationExpired
	}
	if !sameExpiration(info.Expiration, v.ExpiresAt) {
		return nil, ErrVerificationEmailMismatch
	}

	if err := p.verifications.DeleteVerification(ctx, v.ID); err != nil {
		return nil, fmt.Errorf("failed to delete verification: %w", err)
	}
	jar.Delete(p.cookieName, p.cookieOptions()...)

	user, err := p.users.FindUserByID(ctx, v.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.EmailVerifiedAt = &now
	user.UpdatedAt = now
	if err := p.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// VerificationCookie returns the pending verification bound to this
// browser. A cookie that fails verification is removed.
func (p *Password) VerificationCookie(jar cookie.Jar) (VerificationInfo, bool) {
	if p.verifications == nil {
		return VerificationInfo{}, false
	}

	raw, ok := jar.Get(p.cookieName)
	if !ok {
		return VerificationInfo{}, false
	}

	var info VerificationInfo
	if err := p.signer.VerifyJSON(raw, &info); err != nil {
		jar.Delete(p.cookieName, p.cookieOptions()...)
		return VerificationInfo{}, false
	}

	return info, true
}

func (p *Password) issueVerification(ctx context.Context, jar cookie.Jar, user *User) (*VerificationInfo, error) {
	now := p.now()
	v := &Verification{
		ID:        uuid.New(),
		UserID:    user.ID,
		Email:     user.Email,
		Token:     generateVerificationToken(),
		ExpiresAt: now.Add(p.verificationTTL),
		CreatedAt: now,
	}

	if err := p.verifications.CreateVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to create verification: %w", err)
	}

	info := &VerificationInfo{Email: v.Email, Expiration: v.ExpiresAt}
	signed, err := p.signer.SignJSON(info)
	if err != nil {
		return nil, err
	}

	jar.Set(p.cookieName, signed, p.cookieOptions(cookie.WithMaxAge(int(p.verificationTTL/time.Second)))...)

	if p.mailer != nil {
		if err := p.mailer.SendVerification(ctx, v.Email, p.verificationLink(v.Token), v.ExpiresAt); err != nil {
			p.logger.ErrorContext(ctx, "failed to send verification email",
				logger.Component("password"),
				logger.UserID(user.ID),
				logger.Email(v.Email),
				logger.Error(err),
			)
			// Drop the token so the user can request a new one immediately.
			if delErr := p.verifications.DeleteVerification(ctx, v.ID); delErr != nil {
				err = errors.Join(err, delErr)
			}
			jar.Delete(p.cookieName, p.cookieOptions()...)
			return nil, fmt.Errorf("failed to send verification email: %w", err)
		}
	}

	return info, nil
}

func (p *Password) cookieOptions(extra ...cookie.Option) []cookie.Option {
	opts := append([]cookie.Option{}, p.cookieOpts...)
	opts = append(opts, flowCookieAttrs...)
	return append(opts, extra...)
}

func (p *Password) verificationLink(token string) string {
	u, err := url.Parse(p.verifyURL)
	if err != nil || p.verifyURL == "" {
		return p.verifyURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// expirationPrecision absorbs the rounding of the JSON cookie and the
// database column.
const expirationPrecision = time.Millisecond

func sameExpiration(a, b time.Time) bool {
	d := a.Sub(b)
	return d > -expirationPrecision && d < expirationPrecision
}

func generateVerificationToken() string {
	return randomToken()
}
