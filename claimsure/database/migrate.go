package database

import (
	"github.com/claimsure/claimsure-app/conf"
	"github.com/claimsure/claimsure-app/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrateUp applies all pending schema migrations from migrationsDir.
func MigrateUp(migrationsDir string) error {
	return runMigration(migrationsDir, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back a single migration step.
func MigrateDown(migrationsDir string) error {
	return runMigration(migrationsDir, func(m *migrate.Migrate) error { return m.Steps(-1) })
}

func runMigration(migrationsDir string, apply func(*migrate.Migrate) error) error {
	databaseURL := conf.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("invalid config, DatabaseURL must be set")
	}

	m, err := migrate.New("file://"+migrationsDir, databaseURL)
	if err != nil {
		return errors.Wrap(err, "failed to open migration source")
	}
	defer m.Close()

	if err := apply(m); err != nil {
		if err == migrate.ErrNoChange {
			log.API.Info("Database schema already up to date.")
			return nil
		}
		return errors.Wrap(err, "migration failed")
	}

	log.API.Info("Database schema migration complete.")
	return nil
}
