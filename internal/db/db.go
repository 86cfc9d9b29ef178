package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const (
	connectAttempts   = 5
	connectRetryDelay = 2 * time.Second
)

// Connect opens a PostgreSQL connection pool and waits for the server
// to become reachable.
func Connect(databaseURL string) (*sql.DB, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)

	var pingErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingErr = database.Ping()
		if pingErr == nil {
			return database, nil
		}
		time.Sleep(connectRetryDelay)
	}

	database.Close()
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", connectAttempts, pingErr)
}

// RunMigrations applies all pending goose migrations from the given directory.
func RunMigrations(database *sql.DB, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(database, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
