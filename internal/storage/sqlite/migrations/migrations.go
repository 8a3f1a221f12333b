// Package migrations holds the session history schema and applies it to a database.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
)

//go:embed sql/*.sql
var schemaFiles embed.FS

// Apply migrates the database to the latest session history schema and returns the
// resulting schema version. Applying an up to date schema is a no-op.
func Apply(db *sql.DB, logger log.Logger) (uint, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required: %w", model.ErrNotValid)
	}
	if logger == nil {
		logger = log.Noop
	}

	src, err := iofs.New(schemaFiles, "sql")
	if err != nil {
		return 0, fmt.Errorf("could not load schema files: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Errorf("could not close schema files: %s", err)
		}
	}()

	// The migrate instance is not closed, that would close the repository database.
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return 0, fmt.Errorf("could not create driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return 0, fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("could not migrate schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("could not get schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}

	logger.WithValues(log.Kv{"schema-version": version}).Debugf("Session history schema ready")

	return version, nil
}
