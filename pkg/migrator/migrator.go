package migrator

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/ghuser/dkn/migrations"
	"github.com/ghuser/dkn/pkg/database"
)

// CreateAll applies every pending migration of the DKN schema. Already
// applied versions are skipped and nothing is dropped, so repeated calls
// leave existing tables and rows intact.
func CreateAll(ctx context.Context, db *database.Database) error {
	_, err := Run(ctx, db, migrations.FS)
	return err
}

// Run applies pending goose migrations from files against db and returns
// the versions that were applied by this call.
func Run(ctx context.Context, db *database.Database, files fs.FS) ([]int64, error) {
	dialect, err := gooseDialect(db.Dialect())
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(dialect, db.DB().DB, files)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to up migrations: %w", err)
	}

	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

func gooseDialect(d database.Dialect) (goose.Dialect, error) {
	switch d {
	case database.DialectSQLite:
		return goose.DialectSQLite3, nil
	case database.DialectPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("no migration dialect for %q", d)
	}
}
