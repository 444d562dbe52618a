package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/dmitrymomot/authkit/pkg/auth"
)

// Migrations holds the goose migrations for the users, sessions and
// verifications tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

// DBTX is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements auth.UserStorage and auth.VerificationStorage on Postgres.
type Store struct {
	db  DBTX
	now func() time.Time
}

var (
	_ auth.UserStorage         = (*Store)(nil)
	_ auth.VerificationStorage = (*Store)(nil)
)

func New(db DBTX) *Store {
	if db == nil {
		panic("store: database handle is required")
	}
	return &Store{db: db, now: time.Now}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
