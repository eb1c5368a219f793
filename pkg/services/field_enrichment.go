package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/fields"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
	"github.com/fornlamningar/fornlamningar-engine/pkg/repositories"
	"github.com/fornlamningar/fornlamningar-engine/pkg/schema"
)

// FieldEnrichmentConfig controls one description splitting run.
type FieldEnrichmentConfig struct {
	Workers     int  // rows processed in parallel (default 1)
	DeleteEmpty bool // delete rows without description at the end
}

// FieldEnrichmentService derives structured attribute columns from each
// site's free-text description.
type FieldEnrichmentService struct {
	repo     repositories.SiteRepository
	splitter *fields.Splitter
	config   FieldEnrichmentConfig
	logger   *zap.Logger
}

// NewFieldEnrichmentService creates a new field enrichment service.
func NewFieldEnrichmentService(
	repo repositories.SiteRepository,
	splitter *fields.Splitter,
	config FieldEnrichmentConfig,
	logger *zap.Logger,
) *FieldEnrichmentService {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &FieldEnrichmentService{
		repo:     repo,
		splitter: splitter,
		config:   config,
		logger:   logger.Named("field-enrichment"),
	}
}

// baselineHelpers are added to ingested tables that predate them.
var baselineHelpers = []struct {
	name string
	typ  models.ColumnType
}{
	{models.ColumnRest, models.ColumnTypeText},
	{models.ColumnVisibility, models.ColumnTypeInteger},
	{models.ColumnQuality, models.ColumnTypeInteger},
}

// Run splits every row's description into allow-listed columns.
// Row failures are collected in the report; only a failed scan (or failing
// to add the helper columns) aborts the run.
func (s *FieldEnrichmentService) Run(ctx context.Context) (*models.FieldEnrichmentReport, error) {
	start := time.Now()
	report := models.NewFieldEnrichmentReport()
	registry := schema.NewRegistry(s.repo, s.splitter.AllowList(), s.logger)

	for _, h := range baselineHelpers {
		if _, err := registry.EnsureBaselineColumn(ctx, h.name, h.typ); err != nil {
			return nil, fmt.Errorf("ensure %s column: %w", h.name, err)
		}
	}

	existing, err := registry.ExistingAllowedColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	rows, err := s.repo.ListDescriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan descriptions: %w", err)
	}

	s.logger.Info("Starting field enrichment",
		zap.String("run_id", report.RunID.String()),
		zap.String("table", s.repo.Table()),
		zap.Int("rows", len(rows)),
		zap.Int("allow_list", s.splitter.AllowList().Len()),
		zap.Int("workers", s.config.Workers))

	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.processRow(ctx, registry, existing, row, report)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.config.DeleteEmpty && len(report.EmptyRows) > 0 {
		n, err := s.repo.DeleteSites(ctx, report.EmptyRows)
		if err != nil {
			report.AddError(models.RowError{Message: fmt.Sprintf("delete empty rows: %v", err)})
		}
		report.RowsDeleted = n
	}

	report.ColumnsCreated = registry.Created()
	report.Duration = time.Since(start)

	s.logger.Info("Field enrichment complete",
		zap.String("run_id", report.RunID.String()),
		zap.Int("processed", report.RowsProcessed),
		zap.Int("updated", report.RowsUpdated),
		zap.Int("empty", len(report.EmptyRows)),
		zap.Int("deleted", report.RowsDeleted),
		zap.Strings("columns_created", report.ColumnsCreated),
		zap.Int("rejected_keys", len(report.RejectedKeys)),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (s *FieldEnrichmentService) processRow(
	ctx context.Context,
	registry *schema.Registry,
	existing []string,
	row models.SiteDescription,
	report *models.FieldEnrichmentReport,
) {
	text := row.Description.String
	res := s.splitter.Split(text)
	if res.Empty {
		report.AddEmpty(row.Key)
		return
	}

	values := make(map[string]any, len(res.Fields)+3)
	skipped := make(map[string]bool)
	for _, key := range sortedKeys(res.Fields) {
		if _, err := registry.EnsureColumn(ctx, key); err != nil {
			skipped[key] = true
			if isRejection(err) {
				report.AddRejected(models.RejectedKey{Key: row.Key, Column: key, Reason: err.Error()})
				s.logger.Warn("Rejected structured key",
					zap.String("key", row.Key),
					zap.String("column", key),
					zap.Error(err))
				continue
			}
			report.AddError(models.RowError{Key: row.Key, Column: key, Message: err.Error()})
			continue
		}
		values[key] = res.Fields[key]
	}

	// Columns stay a pure function of (description, allow-list). Keys that
	// could not be ensured keep their stored value.
	for _, col := range slices.Concat(existing, registry.Created()) {
		if _, ok := values[col]; !ok && !skipped[col] {
			values[col] = nil
		}
	}

	values[models.ColumnRest] = res.Remainder
	values[models.ColumnVisibility] = fields.ComputeVisibility(res.Fields)
	values[models.ColumnQuality] = fields.ComputeQuality(text, res.Fields)

	err := s.repo.UpdateColumns(ctx, row.Key, values)
	if err == nil {
		report.AddUpdated()
		return
	}
	s.logger.Warn("Row update failed, retrying column by column",
		zap.String("key", row.Key),
		zap.Error(err))

	written := 0
	for _, col := range sortedKeys(values) {
		if err := s.repo.UpdateColumns(ctx, row.Key, map[string]any{col: values[col]}); err != nil {
			report.AddError(models.RowError{Key: row.Key, Column: col, Message: err.Error()})
			continue
		}
		written++
	}
	if written > 0 {
		report.AddUpdated()
	} else {
		report.AddFailed()
	}
}

func isRejection(err error) bool {
	return errors.Is(err, apperrors.ErrDisallowedKey) ||
		errors.Is(err, apperrors.ErrProtectedColumn) ||
		errors.Is(err, apperrors.ErrInvalidIdentifier)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatFieldEnrichmentSummary renders a report for terminal output.
func FormatFieldEnrichmentSummary(r *models.FieldEnrichmentReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rows processed:   %d\n", r.RowsProcessed)
	fmt.Fprintf(&b, "Rows updated:     %d\n", r.RowsUpdated)
	fmt.Fprintf(&b, "Empty rows:       %d\n", len(r.EmptyRows))
	if r.RowsDeleted > 0 {
		fmt.Fprintf(&b, "Rows deleted:     %d\n", r.RowsDeleted)
	}
	fmt.Fprintf(&b, "Columns created:  %d", len(r.ColumnsCreated))
	if len(r.ColumnsCreated) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(r.ColumnsCreated, ", "))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Rejected keys:    %d\n", len(r.RejectedKeys))
	fmt.Fprintf(&b, "Errors:           %d\n", len(r.Errors))
	fmt.Fprintf(&b, "Duration:         %s\n", r.Duration.Round(time.Millisecond))
	return b.String()
}
