package pg

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Migrate applies the goose migrations found in dir of fsys. Migrations are
// usually embedded next to the queries that depend on them.
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS, dir, table string, log logger) error {
	return runMigrations(ctx, db, fsys, dir, table, log, goose.UpContext)
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, db *sql.DB, fsys fs.FS, dir, table string, log logger) error {
	return runMigrations(ctx, db, fsys, dir, table, log, goose.DownContext)
}

func runMigrations(
	ctx context.Context,
	db *sql.DB,
	fsys fs.FS,
	dir, table string,
	log logger,
	run func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error,
) error {
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if log != nil {
		goose.SetLogger(gooseLogger{log: log})
	}
	if table != "" {
		goose.SetTableName(table)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := run(ctx, db, dir); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}
