package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Identity provider names stored in User.Provider.
const (
	ProviderGoogle   = "google"
	ProviderGitHub   = "github"
	ProviderPassword = "password"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the local account an identity resolves to.
type User struct {
	ID              uuid.UUID
	Email           string
	Name            string
	Image           string
	Provider        string
	Role            string
	PasswordHash    string
	AccessToken     string
	RefreshToken    string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsVerified reports whether the email address has been confirmed.
func (u *User) IsVerified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}

// Verification is a single-use email confirmation token.
type Verification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Email     string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token is past its expiry at now.
func (v *Verification) IsExpired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// ProviderUser is the identity returned by an IdP after a successful login.
type ProviderUser struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Picture        string
	AccessToken    string
	RefreshToken   string
}

// UserStorage is the persistence contract for users. Lookups return
// ErrUserNotFound when no row matches.
type UserStorage interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	// UpsertUserByEmail creates the user or refreshes the provider fields of
	// the existing row with the same email, returning the stored record. When
	// user carries EmailVerifiedAt and the stored row is unverified, the row
	// is marked verified, its password hash is cleared and any pending
	// verification for the email is removed.
	UpsertUserByEmail(ctx context.Context, user *User) (*User, error)
}

// VerificationStorage is the persistence contract for verification tokens.
// Lookups return ErrVerificationNotFound when no row matches.
type VerificationStorage interface {
	CreateVerification(ctx context.Context, v *Verification) error
	FindVerificationByToken(ctx context.Context, token string) (*Verification, error)
	FindVerificationByEmail(ctx context.Context, email string) (*Verification, error)
	DeleteVerification(ctx context.Context, id uuid.UUID) error
}

// NormalizeEmail trims, NFC-normalizes and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}
