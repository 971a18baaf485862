package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const (
	migrationsTable     = "slotline_migrations"
	migrationLocksTable = "slotline_migration_locks"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the embedded schema migrations. Files named
// NNNNN_comment.tx.up.sql run inside a transaction.
func Migrations() (*migrate.Migrations, error) {
	migs := migrate.NewMigrations()
	if err := migs.Discover(migrationFS); err != nil {
		return nil, err
	}
	return migs, nil
}

// Migrate applies pending embedded migrations while holding the migrator's
// table lock and returns the migrations it applied.
func Migrate(ctx context.Context, db *bun.DB) (applied []string, err error) {
	migs, err := Migrations()
	if err != nil {
		return nil, err
	}

	// The SQL runner in bun/migrate does not surface statement errors, so a
	// migration only counts once its after-hook has run.
	completed := make(map[string]bool)
	migrator := migrate.NewMigrator(db, migs,
		migrate.WithTableName(migrationsTable),
		migrate.WithLocksTableName(migrationLocksTable),
		migrate.WithMarkAppliedOnSuccess(true),
		migrate.AfterMigration(func(ctx context.Context, _ bun.IConn, m *migrate.Migration) error {
			completed[m.Name] = true
			return nil
		}),
	)

	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migration tables: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if unlockErr := migrator.Unlock(ctx); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}()

	group, err := migrator.Migrate(ctx)
	if group == nil {
		return nil, err
	}
	for i := range group.Migrations {
		m := &group.Migrations[i]
		if completed[m.Name] {
			applied = append(applied, m.String())
			continue
		}
		if m.IsApplied() {
			if unmarkErr := migrator.MarkUnapplied(ctx, m); unmarkErr != nil {
				return applied, fmt.Errorf("migration %s failed; unmark: %w", m, unmarkErr)
			}
		}
		if err == nil {
			err = fmt.Errorf("migration %s failed", m)
		}
		return applied, err
	}
	return applied, err
}
