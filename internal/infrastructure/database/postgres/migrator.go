// Package postgres manages the PostgreSQL connection pools and the listing
// schema. Migrations are embedded in the binary and applied with
// golang-migrate; the CLI exposes up, down and status.
package postgres

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Postgres driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationStatus is the schema state reported by the migrate tool.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// Migrator applies the embedded migrations to one database.
type Migrator struct {
	dbURL  string
	logger logging.Logger
	open   func() (migrator, error)
}

// migrator is the subset of *migrate.Migrate used here.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(v int) error
	Close() (error, error)
}

func NewMigrator(dbURL string, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := &Migrator{dbURL: dbURL, logger: log.Named("migrate")}
	m.open = m.openEmbedded
	return m
}

func (m *Migrator) openEmbedded() (migrator, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to open embedded migrations")
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, m.dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return mg, nil
}

func (m *Migrator) with(fn func(migrator) error) error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()
	return fn(mg)
}

// Up applies every pending migration. No pending migration is not an error.
func (m *Migrator) Up() error {
	return m.with(func(mg migrator) error {
		if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			version, _, _ := mg.Version()
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations").
				WithDetail(fmt.Sprintf("current version: %d", version))
		}
		version, dirty, _ := mg.Version()
		m.logger.Info("Database migrations completed",
			logging.Int64("version", int64(version)),
			logging.Bool("dirty", dirty))
		return nil
	})
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.InvalidParam("steps must be greater than 0").WithDetail(fmt.Sprintf("got %d", steps))
	}
	return m.with(func(mg migrator) error {
		if err := mg.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return errors.New(errors.ErrCodeConflict, "no migrations to roll back")
			}
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations").
				WithDetail(fmt.Sprintf("steps: %d", steps))
		}
		m.logger.Info("Database migrations rolled back", logging.Int("steps", steps))
		return nil
	})
}

// Status reports the applied version; zero when nothing has been applied.
func (m *Migrator) Status() (MigrationStatus, error) {
	var st MigrationStatus
	err := m.with(func(mg migrator) error {
		v, dirty, err := mg.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
		}
		st = MigrationStatus{Version: v, Dirty: dirty}
		return nil
	})
	return st, err
}

// Force sets the recorded version without running migrations; used to
// recover from a dirty state.
func (m *Migrator) Force(version int) error {
	return m.with(func(mg migrator) error {
		if err := mg.Force(version); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to force migration version").
				WithDetail(fmt.Sprintf("version: %d", version))
		}
		return nil
	})
}

//Personal.AI order the ending
