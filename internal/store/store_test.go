package store_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/internal/store"
	"github.com/dmitrymomot/authkit/pkg/auth"
)

var userCols = []string{
	"id", "email", "name", "image", "provider", "role", "password_hash",
	"access_token", "refresh_token", "email_verified_at", "created_at", "updated_at",
}

func newMock(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return store.New(db), mock
}

func anyArgs(n int) []sqlmock.Argument {
	args := make([]sqlmock.Argument, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func toDriver(args []sqlmock.Argument) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func TestMigrations_Embedded(t *testing.T) {
	t.Parallel()

	entries, err := fs.ReadDir(store.Migrations, store.MigrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := fs.ReadFile(store.Migrations, store.MigrationsDir+"/"+entries[0].Name())
	require.NoError(t, err)
	for _, table := range []string{"users", "sessions", "verifications"} {
		assert.Contains(t, string(data), "CREATE TABLE "+table)
	}
	assert.True(t, strings.Contains(string(data), "-- +goose Down"))
}

func TestStore_FindUserByEmail(t *testing.T) {
	t.Parallel()
	s, mock := newMock(t)

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("jane@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			id.String(), "jane@example.com", "Jane", nil, "password", "user", "$2a$hash",
			nil, nil, now, now, now,
		))

	u, err := s.FindUserByEmail(context.Background(), "  Jane@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "$2a$hash", u.PasswordHash)
	assert.Empty(t, u.Image)
	require.NotNil(t, u.EmailVerifiedAt)
	assert.True(t, u.IsVerified())
}

func TestStore_FindUserNotFound(t *testing.T) {
	t.Parallel()
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindUserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestStore_CreateUser(t *testing.T) {
	t.Parallel()

	t.Run("fills defaults", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(toDriver(anyArgs(12))...).
			WillReturnResult(sqlmock.NewResult(0, 1))

		u := &auth.User{Email: "A@B.com", Name: "A", Provider: auth.ProviderPassword}
		require.NoError(t, s.CreateUser(context.Background(), u))
		assert.NotEqual(t, uuid.Nil, u.ID)
		assert.Equal(t, auth.RoleUser, u.Role)
		assert.Equal(t, "a@b.com", u.Email)
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := s.CreateUser(context.Background(), &auth.User{Email: "a@b.com"})
		assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	})
}

func TestStore_UpdateUser(t *testing.T) {
	t.Parallel()

	t.Run("updated", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
			WithArgs(toDriver(anyArgs(11))...).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.UpdateUser(context.Background(), &auth.User{ID: uuid.New(), Email: "a@b.com"}))
	})

	t.Run("missing row", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.UpdateUser(context.Background(), &auth.User{ID: uuid.New()})
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestStore_UpsertUserByEmail(t *testing.T) {
	t.Parallel()
	s, mock := newMock(t)

	existing := uuid.New()
	created := time.Now().Add(-24 * time.Hour).UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (email) DO UPDATE SET")).
		WithArgs(toDriver(anyArgs(12))...).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			existing.String(), "a@b.com", "From Google", "https://img", "google", "admin", nil,
			"access", "refresh", nil, created, time.Now().UTC(),
		))

	u, err := s.UpsertUserByEmail(context.Background(), &auth.User{
		Email:       "a@b.com",
		Name:        "From Google",
		Provider:    auth.ProviderGoogle,
		AccessToken: "access",
	})
	require.NoError(t, err)
	assert.Equal(t, existing, u.ID, "existing row keeps its id")
	assert.Equal(t, auth.RoleAdmin, u.Role)
	assert.Equal(t, "refresh", u.RefreshToken)
	assert.Equal(t, created, u.CreatedAt)
}

func TestStore_UpsertUserByEmail_ClaimsUnverifiedAccount(t *testing.T) {
	t.Parallel()
	s, mock := newMock(t)

	existing := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`password_hash = CASE WHEN users\.email_verified_at IS NULL AND EXCLUDED\.email_verified_at IS NOT NULL THEN NULL`).
		WithArgs(toDriver(anyArgs(12))...).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			existing.String(), "victim@b.com", "Victim", nil, "google", "user", nil,
			"access", nil, now, now.Add(-time.Hour), now,
		))

	u, err := s.UpsertUserByEmail(context.Background(), &auth.User{
		Email:           "victim@b.com",
		Name:            "Victim",
		Provider:        auth.ProviderGoogle,
		AccessToken:     "access",
		EmailVerifiedAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, existing, u.ID)
	assert.Empty(t, u.PasswordHash, "password set before verification is dropped")
	assert.Equal(t, auth.ProviderGoogle, u.Provider)
	assert.True(t, u.IsVerified())
}

func TestStore_UpsertUserByEmail_DropsPendingVerification(t *testing.T) {
	t.Parallel()
	s, mock := newMock(t)

	mock.ExpectQuery(`DELETE FROM verifications\s+WHERE email = \$2 AND EXISTS \(SELECT 1 FROM upserted WHERE email_verified_at IS NOT NULL\)`).
		WithArgs(toDriver(anyArgs(12))...).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			uuid.New().String(), "a@b.com", "A", nil, "github", "user", nil,
			nil, nil, nil, time.Now().UTC(), time.Now().UTC(),
		))

	_, err := s.UpsertUserByEmail(context.Background(), &auth.User{Email: "a@b.com", Name: "A", Provider: auth.ProviderGitHub})
	require.NoError(t, err)
}

var verificationCols = []string{"id", "user_id", "email", "token", "expires_at", "created_at"}

func TestStore_Verifications(t *testing.T) {
	t.Parallel()

	t.Run("create", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO verifications")).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "a@b.com", "tok", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		v := &auth.Verification{UserID: uuid.New(), Email: "A@b.com", Token: "tok", ExpiresAt: time.Now().Add(6 * time.Minute)}
		require.NoError(t, s.CreateVerification(context.Background(), v))
		assert.NotEqual(t, uuid.Nil, v.ID)
	})

	t.Run("create duplicate email", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO verifications")).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := s.CreateVerification(context.Background(), &auth.Verification{Email: "a@b.com"})
		assert.ErrorIs(t, err, auth.ErrVerificationStillExists)
	})

	t.Run("find by token", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		id, userID := uuid.New(), uuid.New()
		exp := time.Now().Add(time.Minute).UTC()
		mock.ExpectQuery(regexp.QuoteMeta("FROM verifications WHERE token = $1")).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(verificationCols).AddRow(id.String(), userID.String(), "a@b.com", "tok", exp, exp))

		v, err := s.FindVerificationByToken(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, id, v.ID)
		assert.Equal(t, userID, v.UserID)
		assert.Equal(t, exp, v.ExpiresAt)
	})

	t.Run("find by email missing", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM verifications WHERE email = $1")).
			WithArgs("a@b.com").
			WillReturnRows(sqlmock.NewRows(verificationCols))

		_, err := s.FindVerificationByEmail(context.Background(), "A@B.com")
		assert.ErrorIs(t, err, auth.ErrVerificationNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM verifications WHERE id = $1")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.DeleteVerification(context.Background(), uuid.New())
		assert.ErrorIs(t, err, auth.ErrVerificationNotFound)
	})

	t.Run("delete driver error", func(t *testing.T) {
		t.Parallel()
		s, mock := newMock(t)
		boom := errors.New("conn reset")
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM verifications")).WillReturnError(boom)

		err := s.DeleteVerification(context.Background(), uuid.New())
		assert.ErrorIs(t, err, boom)
	})
}
