package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/pg"
)

const userColumns = `id, email, name, image, provider, role, password_hash, access_token, refresh_token, email_verified_at, created_at, updated_at`

const (
	queryFindUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	queryFindUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	queryCreateUser = `INSERT INTO users (` + userColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	queryUpdateUser = `UPDATE users SET
	email = $2, name = $3, image = $4, provider = $5, role = $6, password_hash = $7,
	access_token = $8, refresh_token = $9, email_verified_at = $10, updated_at = $11
WHERE id = $1`

	// Existing rows keep their id, role and creation time. The provider
	// fields are refreshed and a verified timestamp is never cleared. When an
	// unverified row is claimed by a provider that vouches for the email, the
	// password set before verification is dropped along with its pending
	// verification token.
	queryUpsertUserByEmail = `WITH upserted AS (
	INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (email) DO UPDATE SET
		name = EXCLUDED.name,
		image = COALESCE(EXCLUDED.image, users.image),
		provider = CASE WHEN ` + claimsUnverified + ` THEN EXCLUDED.provider ELSE users.provider END,
		password_hash = CASE WHEN ` + claimsUnverified + ` THEN NULL ELSE users.password_hash END,
		access_token = EXCLUDED.access_token,
		refresh_token = COALESCE(EXCLUDED.refresh_token, users.refresh_token),
		email_verified_at = COALESCE(users.email_verified_at, EXCLUDED.email_verified_at),
		updated_at = EXCLUDED.updated_at
	RETURNING ` + userColumns + `
), claimed AS (
	DELETE FROM verifications
	WHERE email = $2 AND EXISTS (SELECT 1 FROM upserted WHERE email_verified_at IS NOT NULL)
)
SELECT ` + userColumns + ` FROM upserted`
)

const claimsUnverified = `users.email_verified_at IS NULL AND EXCLUDED.email_verified_at IS NOT NULL`

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, queryFindUserByEmail, auth.NormalizeEmail(email)))
}

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, queryFindUserByID, id))
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	s.stamp(u)
	if _, err := s.db.ExecContext(ctx, queryCreateUser, userArgs(u)...); err != nil {
		if pg.IsDuplicateKeyError(err) {
			return auth.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, u *auth.User) error {
	u.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, queryUpdateUser,
		u.ID, auth.NormalizeEmail(u.Email), u.Name, nullString(u.Image), u.Provider, u.Role,
		nullString(u.PasswordHash), nullString(u.AccessToken), nullString(u.RefreshToken),
		nullTime(u.EmailVerifiedAt), u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *Store) UpsertUserByEmail(ctx context.Context, u *auth.User) (*auth.User, error) {
	s.stamp(u)
	return s.scanUser(s.db.QueryRowContext(ctx, queryUpsertUserByEmail, userArgs(u)...))
}

// stamp fills the id, role and timestamps of a user about to be inserted.
func (s *Store) stamp(u *auth.User) {
	now := s.now().UTC()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = auth.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.Email = auth.NormalizeEmail(u.Email)
}

func userArgs(u *auth.User) []any {
	return []any{
		u.ID, u.Email, u.Name, nullString(u.Image), u.Provider, u.Role,
		nullString(u.PasswordHash), nullString(u.AccessToken), nullString(u.RefreshToken),
		nullTime(u.EmailVerifiedAt), u.CreatedAt, u.UpdatedAt,
	}
}

func (s *Store) scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u                            auth.User
		image, hash, access, refresh sql.NullString
		verifiedAt                   sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &image, &u.Provider, &u.Role,
		&hash, &access, &refresh, &verifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Image = image.String
	u.PasswordHash = hash.String
	u.AccessToken = access.String
	u.RefreshToken = refresh.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.EmailVerifiedAt = &t
	}
	return &u, nil
}
