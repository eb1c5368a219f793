//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestSiteTable_Postgres(t *testing.T) {
	db, table := SiteTable(t)
	ctx := context.Background()

	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1",
		table).Scan(&count)
	if err != nil {
		t.Fatalf("failed to count columns: %v", err)
	}

	if count != 11 {
		t.Errorf("expected 11 baseline columns in %s, got %d", table, count)
	}
}

func TestSQLiteDB(t *testing.T) {
	db := SQLiteDB(t, "fornlamningar")

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('fornlamningar')`).Scan(&count); err != nil {
		t.Fatalf("failed to read table info: %v", err)
	}
	if count != 11 {
		t.Errorf("expected 11 baseline columns, got %d", count)
	}
}
