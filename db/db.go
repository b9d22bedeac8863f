package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// ParseURL maps DATABASE_URL onto a database/sql driver name and DSN.
// postgres:// and postgresql:// go to lib/pq; sqlite:// and file: to go-sqlite3.
func ParseURL(databaseURL string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(databaseURL, "sqlite://"), nil
	case strings.HasPrefix(databaseURL, "file:"):
		return DriverSQLite, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}
}

func Connect(databaseURL string, timeout time.Duration) (*sqlx.DB, error) {
	driver, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite пишет одним соединением; in-memory база живёт только в нём.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = conn.PingContext(ctx); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Warn("failed to close database handle after ping error", slog.Any("error", closeErr))
		}
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	if driver == DriverSQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable sqlite foreign keys: %w", err)
		}
	}

	return conn, nil
}

// Migrate applies the embedded migrations for the connection's dialect.
func Migrate(conn *sqlx.DB) error {
	var (
		driver database.Driver
		dir    string
		err    error
	)

	switch conn.DriverName() {
	case DriverPostgres:
		driver, err = postgres.WithInstance(conn.DB, &postgres.Config{})
		dir = "migrations/postgres"
	case DriverSQLite:
		driver, err = sqlite3.WithInstance(conn.DB, &sqlite3.Config{})
		dir = "migrations/sqlite"
	default:
		return fmt.Errorf("no migrations for driver %q", conn.DriverName())
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, conn.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// m.Close() закрыл бы и сам *sql.DB, поэтому не вызываем.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
