// Package pg opens the Postgres pool used by the relational session store
// and the user storage, and applies their goose migrations.
//
//	cfg, err := config.Load[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	db := pg.OpenDB(pool)
//	if err := pg.Migrate(ctx, db, store.Migrations, "migrations", cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
// OpenDB bridges the pool to database/sql, which is what goose and the
// stores consume. IsDuplicateKeyError classifies pgconn errors.
package pg
