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

const (
	verificationColumns = `id, user_id, email, token, expires_at, created_at`

	queryCreateVerification = `INSERT INTO verifications (id, user_id, email, token, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`

	queryFindVerificationByToken = `SELECT ` + verificationColumns + ` FROM verifications WHERE token = $1`

	queryFindVerificationByEmail = `SELECT ` + verificationColumns + ` FROM verifications WHERE email = $1`

	queryDeleteVerification = `DELETE FROM verifications WHERE id = $1`
)

// CreateVerification inserts v. The email column is unique, so a second
// pending token for the same address is rejected with
// auth.ErrVerificationStillExists.
func (s *Store) CreateVerification(ctx context.Context, v *auth.Verification) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, queryCreateVerification,
		v.ID, v.UserID, auth.NormalizeEmail(v.Email), v.Token, v.ExpiresAt, v.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return auth.ErrVerificationStillExists
		}
		return fmt.Errorf("failed to create verification: %w", err)
	}
	return nil
}

func (s *Store) FindVerificationByToken(ctx context.Context, token string) (*auth.Verification, error) {
	return scanVerification(s.db.QueryRowContext(ctx, queryFindVerificationByToken, token))
}

func (s *Store) FindVerificationByEmail(ctx context.Context, email string) (*auth.Verification, error) {
	return scanVerification(s.db.QueryRowContext(ctx, queryFindVerificationByEmail, auth.NormalizeEmail(email)))
}

func (s *Store) DeleteVerification(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, queryDeleteVerification, id)
	if err != nil {
		return fmt.Errorf("failed to delete verification: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrVerificationNotFound
	}
	return nil
}

func scanVerification(row *sql.Row) (*auth.Verification, error) {
	var v auth.Verification
	if err := row.Scan(&v.ID, &v.UserID, &v.Email, &v.Token, &v.ExpiresAt, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to scan verification: %w", err)
	}
	return &v, nil
}
