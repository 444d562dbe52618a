package pg

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString    = errors.New("empty postgres connection string, set PG_CONN_URL")
	ErrFailedToParseDBConfig    = errors.New("failed to parse db config")
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
	ErrHealthcheckFailed        = errors.New("healthcheck failed, connection is not available")
	ErrFailedToApplyMigrations  = errors.New("failed to apply migrations")
)

// IsDuplicateKeyError reports a unique constraint violation (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
