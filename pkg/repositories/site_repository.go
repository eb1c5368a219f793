package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/database"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
)

// deleteChunkSize bounds the IN list of a single DELETE.
const deleteChunkSize = 500

// SiteRepository provides data access for the site table.
// Column names passed in are trusted: callers validate them through the schema registry.
type SiteRepository interface {
	// Table returns the site table name.
	Table() string

	// KeyColumn returns the column rows are addressed by.
	KeyColumn() string

	// Columns lists the live physical columns of the site table.
	Columns(ctx context.Context) ([]string, error)

	// AddColumn adds a nullable column. Returns apperrors.ErrColumnExists if
	// the store reports the column already exists.
	AddColumn(ctx context.Context, name string, typ models.ColumnType) error

	// ListDescriptions returns every addressable row with its description.
	ListDescriptions(ctx context.Context) ([]models.SiteDescription, error)

	// UpdateColumns sets the given columns on one row. Nil values write NULL.
	UpdateColumns(ctx context.Context, key string, values map[string]any) error

	// DeleteSites removes rows by key and returns the number removed.
	DeleteSites(ctx context.Context, keys []string) (int, error)

	// ListGenerationCandidates samples up to limit rows where selectorColumn equals
	// selectorValue and generatedDescription is NULL, in random order.
	// attributeColumns are read into GenerationCandidate.Attributes.
	ListGenerationCandidates(ctx context.Context, selectorColumn, selectorValue string, attributeColumns []string, limit int) ([]models.GenerationCandidate, error)

	// SetGeneratedDescription writes generatedDescription for one row.
	SetGeneratedDescription(ctx context.Context, key, text string) error

	// ListForLookup returns rows with a uuid, optionally only those without itemTitle.
	// A limit of 0 means no limit.
	ListForLookup(ctx context.Context, onlyMissing bool, limit int) ([]models.LookupCandidate, error)

	// UpdateLookup writes itemTitle and itemKeyword, and description only where it is empty.
	UpdateLookup(ctx context.Context, key string, lookup *models.SiteLookup) error

	// Stats counts rows and filled baseline columns.
	Stats(ctx context.Context) (*models.SiteStats, error)
}

type siteRepository struct {
	db        *sqlx.DB
	dialect   dialect
	table     string
	keyColumn string
}

// NewSiteRepository creates a SiteRepository over db for the given driver.
func NewSiteRepository(db *sqlx.DB, driver, table, keyColumn string) SiteRepository {
	return &siteRepository{
		db:        db,
		dialect:   dialectFor(driver),
		table:     table,
		keyColumn: keyColumn,
	}
}

var _ SiteRepository = (*siteRepository)(nil)

func (r *siteRepository) Table() string { return r.table }

func (r *siteRepository) KeyColumn() string { return r.keyColumn }

// qt and qk return the quoted table and key column.
func (r *siteRepository) qt() string { return database.QuoteIdentifier(r.table) }

func (r *siteRepository) qk() string { return database.QuoteIdentifier(r.keyColumn) }

func q(column string) string { return database.QuoteIdentifier(column) }

func (r *siteRepository) Columns(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.SelectContext(ctx, &names, r.db.Rebind(r.dialect.columnsQuery()), r.table); err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", r.table, err)
	}
	return names, nil
}

func (r *siteRepository) AddColumn(ctx context.Context, name string, typ models.ColumnType) error {
	query := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, r.qt(), q(name), typ)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		if r.dialect.isDuplicateColumn(err) {
			return fmt.Errorf("column %s: %w", name, apperrors.ErrColumnExists)
		}
		return fmt.Errorf("failed to add column %s: %w", name, err)
	}
	return nil
}

func (r *siteRepository) ListDescriptions(ctx context.Context) ([]models.SiteDescription, error) {
	query := fmt.Sprintf(`SELECT %s AS site_key, %s AS description FROM %s WHERE %s IS NOT NULL ORDER BY %s`,
		r.qk(), q(models.ColumnDescription), r.qt(), r.qk(), r.qk())

	var rows []models.SiteDescription
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to scan site descriptions: %w", err)
	}
	return rows, nil
}

func (r *siteRepository) UpdateColumns(ctx context.Context, key string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	assignments := make([]string, len(columns))
	args := make([]any, 0, len(columns)+1)
	for i, col := range columns {
		assignments[i] = q(col) + " = ?"
		args = append(args, values[col])
	}
	args = append(args, key)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ?`, r.qt(), strings.Join(assignments, ", "), r.qk())
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to update site %s: %w", key, err)
	}
	return nil
}

func (r *siteRepository) DeleteSites(ctx context.Context, keys []string) (int, error) {
	deleted := 0
	for start := 0; start < len(keys); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(keys) {
			end = len(keys)
		}

		query, args, err := sqlx.In(fmt.Sprintf(`DELETE FROM %s WHERE %s IN (?)`, r.qt(), r.qk()), keys[start:end])
		if err != nil {
			return deleted, fmt.Errorf("failed to build delete: %w", err)
		}
		res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete sites: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("failed to count deleted sites: %w", err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (r *siteRepository) ListGenerationCandidates(ctx context.Context, selectorColumn, selectorValue string, attributeColumns []string, limit int) ([]models.GenerationCandidate, error) {
	selectCols := []string{r.qk(), q(models.ColumnDescription)}
	for _, col := range attributeColumns {
		selectCols = append(selectCols, q(col))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND %s IS NULL AND %s IS NOT NULL ORDER BY RANDOM() LIMIT ?`,
		strings.Join(selectCols, ", "), r.qt(), q(selectorColumn), q(models.ColumnGeneratedDescription), r.qk())

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), selectorValue, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select generation candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.GenerationCandidate
	for rows.Next() {
		values := make([]sql.NullString, len(selectCols))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan generation candidate: %w", err)
		}

		c := models.GenerationCandidate{
			Key:         values[0].String,
			Description: values[1].String,
			Attributes:  make(map[string]string, len(attributeColumns)),
		}
		for i, col := range attributeColumns {
			if v := values[i+2]; v.Valid {
				c.Attributes[col] = v.String
			}
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read generation candidates: %w", err)
	}
	return candidates, nil
}

func (r *siteRepository) SetGeneratedDescription(ctx context.Context, key, text string) error {
	return r.UpdateColumns(ctx, key, map[string]any{models.ColumnGeneratedDescription: text})
}

func (r *siteRepository) ListForLookup(ctx context.Context, onlyMissing bool, limit int) ([]models.LookupCandidate, error) {
	uuidCol := q(models.ColumnUUID)
	where := fmt.Sprintf(`%s IS NOT NULL AND %s <> '' AND %s IS NOT NULL`, uuidCol, uuidCol, r.qk())
	if onlyMissing {
		title := q(models.ColumnItemTitle)
		where += fmt.Sprintf(` AND (%s IS NULL OR %s = '')`, title, title)
	}

	query := fmt.Sprintf(`SELECT %s AS site_key, %s AS uuid, %s AS description FROM %s WHERE %s ORDER BY %s`,
		r.qk(), uuidCol, q(models.ColumnDescription), r.qt(), where, r.qk())

	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []models.LookupCandidate
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select lookup candidates: %w", err)
	}
	return rows, nil
}

func (r *siteRepository) UpdateLookup(ctx context.Context, key string, lookup *models.SiteLookup) error {
	desc := q(models.ColumnDescription)
	query := fmt.Sprintf(`UPDATE %s SET %s = ?, %s = ?,
		%s = CASE WHEN (%s IS NULL OR TRIM(%s) = '') AND ? <> '' THEN ? ELSE %s END
		WHERE %s = ?`,
		r.qt(), q(models.ColumnItemTitle), q(models.ColumnItemKeyword),
		desc, desc, desc, desc, r.qk())

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		nullIfEmpty(lookup.Title),
		nullIfEmpty(lookup.Keywords),
		lookup.Description,
		lookup.Description,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to store lookup for %s: %w", key, err)
	}
	return nil
}

func (r *siteRepository) Stats(ctx context.Context) (*models.SiteStats, error) {
	columns, err := r.Columns(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	filled := func(col string) string {
		if !present[col] {
			return "0"
		}
		return fmt.Sprintf(`COUNT(CASE WHEN %s IS NOT NULL AND TRIM(%s) <> '' THEN 1 END)`, q(col), q(col))
	}

	query := fmt.Sprintf(`SELECT COUNT(*) AS total, %s AS with_description, %s AS with_generated, %s AS with_title FROM %s`,
		filled(models.ColumnDescription), filled(models.ColumnGeneratedDescription), filled(models.ColumnItemTitle), r.qt())

	var stats models.SiteStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return &stats, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
