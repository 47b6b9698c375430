package dal

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Migrate applies all unrecorded migrations from dir in order, each in
// its own transaction. The first failure aborts the run; migrations
// already applied stay applied. Migration files are numbered and carry
// paired up/down sections. Migrations should run in a mutually
// exclusive window; concurrent application is not supported.
func (d *DB) Migrate(ctx context.Context, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("folio/dal: set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.db, dir); err != nil {
		return fmt.Errorf("folio/dal: migrate: %w", err)
	}
	return nil
}

// Rollback reverts the most recently applied migration via its down
// section, atomically.
func (d *DB) Rollback(ctx context.Context, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("folio/dal: set migration dialect: %w", err)
	}
	if err := goose.DownContext(ctx, d.db, dir); err != nil {
		return fmt.Errorf("folio/dal: rollback: %w", err)
	}
	return nil
}

// MigrationVersion returns the most recently applied migration version.
func (d *DB) MigrationVersion(ctx context.Context) (int64, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("folio/dal: set migration dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, d.db)
	if err != nil {
		return 0, fmt.Errorf("folio/dal: migration version: %w", err)
	}
	return v, nil
}
