package database

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// RunMigrations applies pending baseline migrations for table.
// It is idempotent and safe to call multiple times - only pending migrations will be executed.
// The baseline uses CREATE ... IF NOT EXISTS, so an already ingested table is left as is.
func RunMigrations(db *sqlx.DB, driverName, table string, logger *zap.Logger) error {
	var (
		driver migratedb.Driver
		err    error
	)
	// One version table per site table, so several datasets can share a store.
	versionTable := "schema_migrations_" + table
	switch driverName {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{MigrationsTable: versionTable})
	case DriverPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{MigrationsTable: versionTable})
	default:
		return fmt.Errorf("unsupported database driver %q", driverName)
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(newTableFS(migrationFiles, table), path.Join("migrations", driverName))
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Closing m would close db as well, which the caller still owns.
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("Failed to close migration source", zap.Error(err))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	logger.Info("Applied migrations successfully",
		zap.String("table", table),
		zap.Uint("version", newVersion))
	return nil
}

// tableFS substitutes the table name into embedded migration files.
// {{table}} becomes the quoted identifier, {{table_name}} the bare name.
type tableFS struct {
	base     embed.FS
	replacer *strings.Replacer
}

func newTableFS(base embed.FS, table string) *tableFS {
	return &tableFS{
		base:     base,
		replacer: strings.NewReplacer("{{table}}", QuoteIdentifier(table), "{{table_name}}", table),
	}
}

func (t *tableFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return t.base.ReadDir(name)
}

func (t *tableFS) Open(name string) (fs.File, error) {
	f, err := t.base.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return f, err
	}
	defer f.Close()

	raw, err := t.base.ReadFile(name)
	if err != nil {
		return nil, err
	}
	rendered := t.replacer.Replace(string(raw))
	return &renderedFile{Reader: bytes.NewReader([]byte(rendered)), info: info}, nil
}

type renderedFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *renderedFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *renderedFile) Close() error               { return nil }
