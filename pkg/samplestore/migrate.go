package samplestore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	"dfchart/pkg/fault"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateUp brings the schema to the latest version. The migrate instance is
// not closed because that would close db as well.
func migrateUp(db *sql.DB, logger zerolog.Logger) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: failed to create migration source: %w", fault.ErrStore, err)
	}
	defer func() { _ = sourceDriver.Close() }()

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("%w: failed to create migration driver: %w", fault.ErrStore, err)
	}

	mig, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("%w: failed to create migrate instance: %w", fault.ErrStore, err)
	}

	fromVersion, _, _ := mig.Version()
	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: migration failed: %w", fault.ErrStore, err)
	}
	toVersion, dirty, _ := mig.Version()

	if fromVersion != toVersion {
		logger.Info().Uint("from_version", fromVersion).Uint("to_version", toVersion).Msg("Sample store migrated")
	} else {
		logger.Debug().Uint("version", toVersion).Bool("dirty", dirty).Msg("Sample store schema is up to date")
	}
	return nil
}
