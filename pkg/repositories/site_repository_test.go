package repositories

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/database"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
)

const testTable = "fornlamningar"

func setupSiteRepo(t *testing.T) (SiteRepository, *sqlx.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, &database.Config{
		Driver: database.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "sites.sqlite"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.RunMigrations(db, database.DriverSQLite, testTable, zap.NewNop()))
	return NewSiteRepository(db, database.DriverSQLite, testTable, models.ColumnUUID), db
}

func insertSite(t *testing.T, db *sqlx.DB, uuid string, description any) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO fornlamningar (inspireid, uuid, description) VALUES (?, ?, ?)`,
		"L"+uuid, uuid, description)
	require.NoError(t, err)
}

func TestSiteRepository_ColumnsAndAddColumn(t *testing.T) {
	repo, _ := setupSiteRepo(t)
	ctx := context.Background()

	cols, err := repo.Columns(ctx)
	require.NoError(t, err)
	assert.Contains(t, cols, "generatedDescription")
	assert.NotContains(t, cols, "skadestatus")

	require.NoError(t, repo.AddColumn(ctx, "skadestatus", models.ColumnTypeText))

	cols, err = repo.Columns(ctx)
	require.NoError(t, err)
	assert.Contains(t, cols, "skadestatus")

	err = repo.AddColumn(ctx, "skadestatus", models.ColumnTypeText)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrColumnExists), "got %v", err)
}

func TestSiteRepository_ListAndUpdate(t *testing.T) {
	repo, db := setupSiteRepo(t)
	ctx := context.Background()

	insertSite(t, db, "b", "Class: Hög")
	insertSite(t, db, "a", nil)
	_, err := db.Exec(`INSERT INTO fornlamningar (inspireid, description) VALUES ('orphan', 'Class: Röse')`)
	require.NoError(t, err)

	rows, err := repo.ListDescriptions(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2, "rows without key are not addressable")
	assert.Equal(t, "a", rows[0].Key)
	assert.False(t, rows[0].Description.Valid)
	assert.Equal(t, "Class: Hög", rows[1].Description.String)

	require.NoError(t, repo.AddColumn(ctx, "class", models.ColumnTypeText))
	require.NoError(t, repo.UpdateColumns(ctx, "b", map[string]any{
		"class":      "Hög",
		"rest":       "",
		"visibility": 1,
	}))

	var class, rest string
	var visibility int
	require.NoError(t, db.QueryRow(`SELECT class, rest, visibility FROM fornlamningar WHERE uuid = 'b'`).Scan(&class, &rest, &visibility))
	assert.Equal(t, "Hög", class)
	assert.Equal(t, "", rest)
	assert.Equal(t, 1, visibility)

	require.NoError(t, repo.UpdateColumns(ctx, "b", map[string]any{"class": nil}))
	var nullable *string
	require.NoError(t, db.QueryRow(`SELECT class FROM fornlamningar WHERE uuid = 'b'`).Scan(&nullable))
	assert.Nil(t, nullable)

	err = repo.UpdateColumns(ctx, "b", map[string]any{"missing_column": "x"})
	assert.Error(t, err)
}

func TestSiteRepository_DeleteSites(t *testing.T) {
	repo, db := setupSiteRepo(t)
	ctx := context.Background()

	keys := make([]string, 0, deleteChunkSize+3)
	for i := 0; i < deleteChunkSize+3; i++ {
		key := fmt.Sprintf("k%04d", i)
		insertSite(t, db, key, nil)
		keys = append(keys, key)
	}
	insertSite(t, db, "keep", "Class: Hög")

	n, err := repo.DeleteSites(ctx, keys)
	require.NoError(t, err)
	assert.Equal(t, len(keys), n)

	var remaining int
	require.NoError(t, db.Get(&remaining, `SELECT COUNT(*) FROM fornlamningar`))
	assert.Equal(t, 1, remaining)
}

func TestSiteRepository_GenerationCandidates(t *testing.T) {
	repo, db := setupSiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AddColumn(ctx, "placering", models.ColumnTypeText))
	require.NoError(t, repo.AddColumn(ctx, "klass", models.ColumnTypeText))

	insertSite(t, db, "s1", "d1")
	insertSite(t, db, "s2", "d2")
	insertSite(t, db, "s3", "d3")
	_, err := db.Exec(`UPDATE fornlamningar SET placering = 'Ovan mark'`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE fornlamningar SET placering = 'Under mark' WHERE uuid = 's3'`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE fornlamningar SET klass = 'Fornlämning' WHERE uuid = 's1'`)
	require.NoError(t, err)

	candidates, err := repo.ListGenerationCandidates(ctx, "placering", "Ovan mark", []string{"klass"}, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	byKey := map[string]models.GenerationCandidate{}
	for _, c := range candidates {
		byKey[c.Key] = c
	}
	assert.Equal(t, "d1", byKey["s1"].Description)
	assert.Equal(t, "Fornlämning", byKey["s1"].Attributes["klass"])
	assert.NotContains(t, byKey["s2"].Attributes, "klass")

	require.NoError(t, repo.SetGeneratedDescription(ctx, "s1", "A mound."))

	candidates, err = repo.ListGenerationCandidates(ctx, "placering", "Ovan mark", nil, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "s2", candidates[0].Key)

	candidates, err = repo.ListGenerationCandidates(ctx, "placering", "Ovan mark", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSiteRepository_Lookup(t *testing.T) {
	repo, db := setupSiteRepo(t)
	ctx := context.Background()

	insertSite(t, db, "u1", nil)
	insertSite(t, db, "u2", "Befintlig beskrivning")
	insertSite(t, db, "u3", "")
	_, err := db.Exec(`UPDATE fornlamningar SET itemTitle = 'Done' WHERE uuid = 'u3'`)
	require.NoError(t, err)

	all, err := repo.ListForLookup(ctx, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	missing, err := repo.ListForLookup(ctx, true, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	limited, err := repo.ListForLookup(ctx, false, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "u1", limited[0].UUID)

	lookup := &models.SiteLookup{Title: "Gravfält", Keywords: `["grav"]`, Description: "Title: Gravfält"}
	require.NoError(t, repo.UpdateLookup(ctx, "u1", lookup))
	require.NoError(t, repo.UpdateLookup(ctx, "u2", lookup))

	var title, keywords, desc string
	require.NoError(t, db.QueryRow(`SELECT itemTitle, itemKeyword, description FROM fornlamningar WHERE uuid = 'u1'`).Scan(&title, &keywords, &desc))
	assert.Equal(t, "Gravfält", title)
	assert.Equal(t, `["grav"]`, keywords)
	assert.Equal(t, "Title: Gravfält", desc)

	require.NoError(t, db.QueryRow(`SELECT description FROM fornlamningar WHERE uuid = 'u2'`).Scan(&desc))
	assert.Equal(t, "Befintlig beskrivning", desc, "existing description is never overwritten")

	// An empty fetched description leaves a NULL description alone
	insertSite(t, db, "u4", nil)
	require.NoError(t, repo.UpdateLookup(ctx, "u4", &models.SiteLookup{Title: "X"}))
	var nullable *string
	require.NoError(t, db.QueryRow(`SELECT description FROM fornlamningar WHERE uuid = 'u4'`).Scan(&nullable))
	assert.Nil(t, nullable)
}

func TestSiteRepository_Stats(t *testing.T) {
	repo, db := setupSiteRepo(t)
	ctx := context.Background()

	insertSite(t, db, "a", "Class: Hög")
	insertSite(t, db, "b", "  ")
	insertSite(t, db, "c", nil)
	require.NoError(t, repo.SetGeneratedDescription(ctx, "a", "A mound."))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.SiteStats{Total: 3, WithDescription: 1, WithGeneratedDescription: 1, WithTitle: 0}, stats)
}

func TestDialect_DuplicateColumn(t *testing.T) {
	assert.True(t, sqliteDialect{}.isDuplicateColumn(errors.New("SQL logic error: duplicate column name: class (1)")))
	assert.False(t, sqliteDialect{}.isDuplicateColumn(errors.New("no such table: x")))
	assert.False(t, sqliteDialect{}.isDuplicateColumn(nil))
	assert.False(t, postgresDialect{}.isDuplicateColumn(errors.New("duplicate column name")))
}
