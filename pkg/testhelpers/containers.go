package testhelpers

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/fornlamningar/fornlamningar-engine/pkg/database"
)

// PostgresImage is the image used for the PostgreSQL site store.
const PostgresImage = "postgres:16-alpine"

// TestDB holds a shared PostgreSQL container and connection.
type TestDB struct {
	Container testcontainers.Container
	DB        *sqlx.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "fornlamningar_test",
			"POSTGRES_USER":     "fornlamningar",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://fornlamningar:test_password@%s:%s/fornlamningar_test?sslmode=disable",
		host, port.Port())

	// The server may restart once after init; retry the first connection.
	var db *sqlx.DB
	for i := 0; i < 10; i++ {
		db, err = database.Open(ctx, &database.Config{
			Driver:         database.DriverPostgres,
			DSN:            connStr,
			MaxConnections: 5,
		})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// SiteTable creates a fresh, migrated site table in the shared PostgreSQL
// container and returns its name. Each call gets its own table.
func SiteTable(t *testing.T) (*sqlx.DB, string) {
	t.Helper()

	testDB := GetTestDB(t)
	table := "sites_" + uuid.NewString()[:8]

	if err := database.RunMigrations(testDB.DB, database.DriverPostgres, table, zap.NewNop()); err != nil {
		t.Fatalf("Failed to migrate %s: %v", table, err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		testDB.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+database.QuoteIdentifier(table))
		testDB.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+database.QuoteIdentifier("schema_migrations_"+table))
	})

	return testDB.DB, table
}

// SQLiteDB opens a migrated SQLite store in a temp dir with the given table.
func SQLiteDB(t *testing.T, table string) *sqlx.DB {
	t.Helper()

	db, err := database.Open(context.Background(), &database.Config{
		Driver: database.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "sites.sqlite"),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.RunMigrations(db, database.DriverSQLite, table, zap.NewNop()); err != nil {
		t.Fatalf("Failed to migrate %s: %v", table, err)
	}
	return db
}
