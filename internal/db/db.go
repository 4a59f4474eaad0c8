package db

import (
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/migrations"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var dbLogger = logging.GetZeroLogger("db", nil)

// InitDB opens the tournament database. SQLite is limited to a single
// connection so transactions serialize instead of failing with SQLITE_BUSY.
func InitDB(driver, dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", driver)
	}

	if driver == DriverSQLite {
		database.SetMaxOpenConns(1)
		if _, err := database.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			database.Close()
			return nil, errors.Wrap(err, "failed to enable foreign keys")
		}
	}

	dbLogger.Info().Str("driver", driver).Msg("Database connected.")
	return database, nil
}

func RunMigrations(database *sqlx.DB) error {
	var (
		driver migratedb.Driver
		err    error
	)
	name := database.DriverName()
	switch name {
	case DriverSQLite:
		driver, err = sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(database.DB, &postgres.Config{})
	default:
		return errors.Errorf("unsupported database driver %q", name)
	}
	if err != nil {
		return errors.Wrap(err, "failed to create migrate driver instance")
	}

	source, err := iofs.New(migrations.FS, migrations.Dir(name))
	if err != nil {
		return errors.Wrap(err, "failed to open embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", source, name, driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrate instance")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to apply migrations")
	}

	version, _, _ := m.Version()
	dbLogger.Info().Uint("schema_version", version).Msg("Migrations applied.")
	return nil
}
