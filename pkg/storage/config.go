package storage

import (
	"fmt"
	"time"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database and cache connection settings.
type Config struct {
	// Driver selects postgres (production) or sqlite (local/dev).
	Driver string

	// PostgresURL is the lib/pq connection string.
	PostgresURL string

	// SQLitePath is the database file; ":memory:" for an ephemeral DB.
	SQLitePath string

	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration

	// RedisURL is optional; rate limiting degrades gracefully without it.
	RedisURL string

	// MigrateOnBoot applies migrations when the service starts.
	MigrateOnBoot bool
}

// DefaultConfig returns sensible local defaults.
func DefaultConfig() Config {
	return Config{
		Driver:        DriverSQLite,
		SQLitePath:    "taskhive.db",
		MaxOpenConns:  25,
		MaxIdleConns:  5,
		ConnLifetime:  30 * time.Minute,
		MigrateOnBoot: true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres driver requires a connection URL")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires a database path")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Driver)
	}
	return nil
}
