package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
)

// MockSiteRepository is an in-memory SiteRepository for tests.
// Rows are kept as column maps; set a Func field to override one method.
type MockSiteRepository struct {
	// AddColumnFunc is called before the in-memory AddColumn when set.
	// Returning a non-nil error skips the in-memory change.
	AddColumnFunc func(ctx context.Context, name string, typ models.ColumnType) error

	// UpdateColumnsFunc is called before the in-memory update when set.
	UpdateColumnsFunc func(ctx context.Context, key string, values map[string]any) error

	// ColumnsFunc replaces Columns when set.
	ColumnsFunc func(ctx context.Context) ([]string, error)

	// ListDescriptionsFunc replaces ListDescriptions when set.
	ListDescriptionsFunc func(ctx context.Context) ([]models.SiteDescription, error)

	TableName string
	Key       string

	mu      sync.Mutex
	columns []string
	rows    map[string]map[string]any
	order   []string

	// Call tracking for verification
	AddColumnCalls []string
	UpdateCalls    int
}

// NewMockSiteRepository creates a mock with the baseline columns and no rows.
func NewMockSiteRepository() *MockSiteRepository {
	return &MockSiteRepository{
		TableName: "fornlamningar",
		Key:       models.ColumnUUID,
		columns:   slices.Clone(models.BaselineColumns),
		rows:      make(map[string]map[string]any),
	}
}

// AddRow inserts a row with the given column values. The key column is set from key.
func (m *MockSiteRepository) AddRow(key string, values map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := map[string]any{m.Key: key}
	for k, v := range values {
		row[k] = v
	}
	m.rows[key] = row
	m.order = append(m.order, key)
}

// Row returns a copy of the stored row, or nil.
func (m *MockSiteRepository) Row(key string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// SetColumns replaces the column list.
func (m *MockSiteRepository) SetColumns(columns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.columns = columns
}

func (m *MockSiteRepository) Table() string { return m.TableName }

func (m *MockSiteRepository) KeyColumn() string { return m.Key }

func (m *MockSiteRepository) Columns(ctx context.Context) ([]string, error) {
	if m.ColumnsFunc != nil {
		return m.ColumnsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.columns), nil
}

func (m *MockSiteRepository) AddColumn(ctx context.Context, name string, typ models.ColumnType) error {
	m.mu.Lock()
	m.AddColumnCalls = append(m.AddColumnCalls, name)
	m.mu.Unlock()

	if m.AddColumnFunc != nil {
		if err := m.AddColumnFunc(ctx, name, typ); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.columns, name) {
		return fmt.Errorf("column %s: %w", name, apperrors.ErrColumnExists)
	}
	m.columns = append(m.columns, name)
	return nil
}

func (m *MockSiteRepository) ListDescriptions(ctx context.Context) ([]models.SiteDescription, error) {
	if m.ListDescriptionsFunc != nil {
		return m.ListDescriptionsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SiteDescription, 0, len(m.order))
	for _, key := range m.order {
		row, ok := m.rows[key]
		if !ok {
			continue
		}
		out = append(out, models.SiteDescription{Key: key, Description: nullString(row[models.ColumnDescription])})
	}
	return out, nil
}

func (m *MockSiteRepository) UpdateColumns(ctx context.Context, key string, values map[string]any) error {
	m.mu.Lock()
	m.UpdateCalls++
	m.mu.Unlock()

	if m.UpdateColumnsFunc != nil {
		if err := m.UpdateColumnsFunc(ctx, key, values); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for col := range values {
		if !slices.Contains(m.columns, col) {
			return fmt.Errorf("no such column: %s", col)
		}
	}
	row, ok := m.rows[key]
	if !ok {
		return nil
	}
	for col, v := range values {
		row[col] = v
	}
	return nil
}

func (m *MockSiteRepository) DeleteSites(ctx context.Context, keys []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, key := range keys {
		if _, ok := m.rows[key]; ok {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

func (m *MockSiteRepository) ListGenerationCandidates(ctx context.Context, selectorColumn, selectorValue string, attributeColumns []string, limit int) ([]models.GenerationCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GenerationCandidate
	for _, key := range m.order {
		row, ok := m.rows[key]
		if !ok || len(out) >= limit {
			continue
		}
		if row[selectorColumn] != selectorValue || row[models.ColumnGeneratedDescription] != nil {
			continue
		}
		c := models.GenerationCandidate{
			Key:         key,
			Description: nullString(row[models.ColumnDescription]).String,
			Attributes:  make(map[string]string),
		}
		for _, col := range attributeColumns {
			if v := nullString(row[col]); v.Valid {
				c.Attributes[col] = v.String
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *MockSiteRepository) SetGeneratedDescription(ctx context.Context, key, text string) error {
	return m.UpdateColumns(ctx, key, map[string]any{models.ColumnGeneratedDescription: text})
}

func (m *MockSiteRepository) ListForLookup(ctx context.Context, onlyMissing bool, limit int) ([]models.LookupCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := slices.Clone(m.order)
	sort.Strings(keys)

	var out []models.LookupCandidate
	for _, key := range keys {
		row, ok := m.rows[key]
		if !ok {
			continue
		}
		uuid := nullString(row[models.ColumnUUID])
		if !uuid.Valid || uuid.String == "" {
			continue
		}
		if onlyMissing && nullString(row[models.ColumnItemTitle]).String != "" {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, models.LookupCandidate{
			Key:         key,
			UUID:        uuid.String,
			Description: nullString(row[models.ColumnDescription]),
		})
	}
	return out, nil
}

func (m *MockSiteRepository) UpdateLookup(ctx context.Context, key string, lookup *models.SiteLookup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return nil
	}
	row[models.ColumnItemTitle] = emptyToNil(lookup.Title)
	row[models.ColumnItemKeyword] = emptyToNil(lookup.Keywords)
	if strings.TrimSpace(nullString(row[models.ColumnDescription]).String) == "" && lookup.Description != "" {
		row[models.ColumnDescription] = lookup.Description
	}
	return nil
}

func (m *MockSiteRepository) Stats(ctx context.Context) (*models.SiteStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.SiteStats{Total: len(m.rows)}
	for _, row := range m.rows {
		if strings.TrimSpace(nullString(row[models.ColumnDescription]).String) != "" {
			stats.WithDescription++
		}
		if nullString(row[models.ColumnGeneratedDescription]).String != "" {
			stats.WithGeneratedDescription++
		}
		if nullString(row[models.ColumnItemTitle]).String != "" {
			stats.WithTitle++
		}
	}
	return stats, nil
}

func nullString(v any) sql.NullString {
	switch s := v.(type) {
	case string:
		return sql.NullString{String: s, Valid: true}
	case *string:
		if s != nil {
			return sql.NullString{String: *s, Valid: true}
		}
	}
	return sql.NullString{}
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure MockSiteRepository implements SiteRepository at compile time.
var _ SiteRepository = (*MockSiteRepository)(nil)
