// Package pgstore is a PostgreSQL implementation of subscription.Repository
// built on a pgx connection pool.
//
// UpdateSubscription runs inside a transaction that locks the row with
// SELECT ... FOR UPDATE, so a local cancel and a concurrently delivered
// cancellation webhook for the same subscription are applied one after the
// other.
//
// The schema ships as goose migrations in Migrations:
//
//	if err := pg.Migrate(ctx, pool, pgCfg, pgstore.Migrations, pgstore.MigrationsDir, log); err != nil {
//	    return err
//	}
//	repo := pgstore.New(pool)
package pgstore
