package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/authkit/internal/store"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/pg"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply every pending migration, or revert the latest one with --down.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg).With(logger.Component("migrate"))
			ctx := cmd.Context()

			pool, err := pg.Connect(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			db := pg.OpenDB(pool)
			defer func() { _ = db.Close() }()

			run := pg.Migrate
			if down {
				run = pg.Rollback
			}
			if err := run(ctx, db, store.Migrations, store.MigrationsDir, cfg.Postgres.MigrationsTable, log); err != nil {
				return err
			}

			log.InfoContext(ctx, "migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert the most recent migration")
	return cmd
}
