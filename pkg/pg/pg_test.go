package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/authkit/pkg/pg"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestConnect_EmptyConnectionString(t *testing.T) {
	t.Parallel()
	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)
}

func TestConnect_InvalidConnectionString(t *testing.T) {
	t.Parallel()
	_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	ok := pg.Healthcheck(pingFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := errors.New("connection refused")
	failing := pg.Healthcheck(pingFunc(func(context.Context) error { return down }))
	err := failing(context.Background())
	assert.ErrorIs(t, err, pg.ErrHealthcheckFailed)
	assert.ErrorIs(t, err, down)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	dup := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsDuplicateKeyError(fk))
	assert.False(t, pg.IsDuplicateKeyError(errors.New("other")))
}
