// Package database opens the site store and applies its baseline migrations.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" for database/sql
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers "sqlite" for database/sql
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// sqlx has no bind type entry for the modernc driver name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Config holds database connection configuration.
type Config struct {
	Driver          string
	DSN             string
	MaxConnections  int
	MaxConnLifetime time.Duration
}

// Open connects to the store and pings it.
// SQLite is capped at one open connection so writes from parallel workers serialize.
func Open(ctx context.Context, cfg *Config) (*sqlx.DB, error) {
	var driverName string
	switch cfg.Driver {
	case DriverSQLite:
		driverName = "sqlite"
	case DriverPostgres:
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		maxConns := cfg.MaxConnections
		if maxConns == 0 {
			maxConns = 10
		}
		db.SetMaxOpenConns(maxConns)
	}

	lifetime := cfg.MaxConnLifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// QuoteIdentifier wraps name in double quotes, doubling embedded quotes.
// Both SQLite and PostgreSQL accept this form and keep the case as written.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
