// Package pg connects to PostgreSQL through a pgx connection pool, applies
// goose migrations from an embedded filesystem and classifies common pgx
// errors.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, "migrations", log); err != nil {
//	    return err
//	}
package pg
