package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTempSQLite(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Driver: DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "sites.sqlite"),
	}
}

func TestRunMigrations_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := openTempSQLite(t)

	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db, DriverSQLite, "fornlamningar", zap.NewNop()))

	var names []string
	require.NoError(t, db.SelectContext(ctx, &names, `SELECT name FROM pragma_table_info('fornlamningar') ORDER BY cid`))
	assert.Equal(t, []string{
		"inspireid", "uuid", "longitude", "latitude", "description",
		"generatedDescription", "itemTitle", "itemKeyword", "visibility", "quality", "rest",
	}, names)

	// Second run is a no-op
	require.NoError(t, RunMigrations(db, DriverSQLite, "fornlamningar", zap.NewNop()))
}

func TestRunMigrations_KeepsExistingTable(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, openTempSQLite(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE lamningar (inspireid TEXT, uuid TEXT, description TEXT, extra TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO lamningar VALUES ('i1', 'u1', 'Class: Hög', 'x')`)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, DriverSQLite, "lamningar", zap.NewNop()))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM lamningar`))
	assert.Equal(t, 1, count)

	var extra string
	require.NoError(t, db.GetContext(ctx, &extra, `SELECT extra FROM lamningar`))
	assert.Equal(t, "x", extra)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), &Config{Driver: "mysql"})
	assert.Error(t, err)
}

func TestTableFS_RendersTableName(t *testing.T) {
	fsys := newTableFS(migrationFiles, "sites")

	f, err := fsys.Open("migrations/sqlite/000002_index_site_keys.up.sql")
	require.NoError(t, err)
	defer f.Close()

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"idx_sites_uuid" ON "sites" (uuid)`)
	assert.NotContains(t, string(body), "{{")

	entries, err := fsys.ReadDir("migrations/postgres")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"generatedDescription"`, QuoteIdentifier("generatedDescription"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
}
