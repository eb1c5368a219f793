package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/ksamsok"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
	"github.com/fornlamningar/fornlamningar-engine/pkg/repositories"
)

// SiteFetcher fetches one site record by UUID. *ksamsok.Client implements it.
type SiteFetcher interface {
	GetSite(ctx context.Context, siteUUID string) (*ksamsok.Site, error)
}

// MetadataLookupConfig controls one lookup run.
type MetadataLookupConfig struct {
	Limit       int  // 0 means every eligible row
	OnlyMissing bool // skip rows that already have itemTitle
}

// MetadataLookupService fills title, keywords and missing descriptions from K-samsök.
type MetadataLookupService struct {
	repo    repositories.SiteRepository
	fetcher SiteFetcher
	config  MetadataLookupConfig
	logger  *zap.Logger
}

// NewMetadataLookupService creates a new lookup service.
func NewMetadataLookupService(
	repo repositories.SiteRepository,
	fetcher SiteFetcher,
	config MetadataLookupConfig,
	logger *zap.Logger,
) *MetadataLookupService {
	return &MetadataLookupService{
		repo:    repo,
		fetcher: fetcher,
		config:  config,
		logger:  logger.Named("metadata-lookup"),
	}
}

// Run looks up each eligible row sequentially; the client paces requests.
// An existing description is never overwritten.
func (s *MetadataLookupService) Run(ctx context.Context) (*models.LookupReport, error) {
	start := time.Now()
	report := &models.LookupReport{
		RunID:       uuid.New(),
		FieldCounts: make(map[string]int),
	}

	rows, err := s.repo.ListForLookup(ctx, s.config.OnlyMissing, s.config.Limit)
	if err != nil {
		return nil, fmt.Errorf("list lookup candidates: %w", err)
	}

	s.logger.Info("Starting metadata lookup",
		zap.String("run_id", report.RunID.String()),
		zap.Int("rows", len(rows)),
		zap.Bool("only_missing", s.config.OnlyMissing))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.RowsProcessed++

		site, err := s.fetcher.GetSite(ctx, row.UUID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				report.NotFound++
				s.logger.Debug("Site not found", zap.String("uuid", row.UUID))
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Errors = append(report.Errors, models.RowError{Key: row.Key, Message: err.Error()})
			s.logger.Warn("Lookup failed", zap.String("uuid", row.UUID), zap.Error(err))
			continue
		}

		keywords, err := site.KeywordsJSON()
		if err != nil {
			report.Errors = append(report.Errors, models.RowError{Key: row.Key, Column: models.ColumnItemKeyword, Message: err.Error()})
			continue
		}

		lookup := &models.SiteLookup{
			Title:       site.Title,
			Keywords:    keywords,
			Description: site.Description,
		}
		if err := s.repo.UpdateLookup(ctx, row.Key, lookup); err != nil {
			report.Errors = append(report.Errors, models.RowError{Key: row.Key, Message: err.Error()})
			continue
		}

		report.Updated++
		if strings.TrimSpace(row.Description.String) == "" && site.Description != "" {
			report.DescriptionsFilled++
		}
		for _, f := range site.Fields {
			report.FieldCounts[f]++
		}

		if (i+1)%10 == 0 {
			s.logger.Info("Lookup progress",
				zap.Int("processed", i+1),
				zap.Int("total", len(rows)),
				zap.Int("updated", report.Updated),
				zap.Int("not_found", report.NotFound))
		}
	}

	report.Duration = time.Since(start)
	s.logger.Info("Metadata lookup complete",
		zap.String("run_id", report.RunID.String()),
		zap.Int("processed", report.RowsProcessed),
		zap.Int("updated", report.Updated),
		zap.Int("descriptions_filled", report.DescriptionsFilled),
		zap.Int("not_found", report.NotFound),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// FormatLookupSummary renders a report for terminal output, most frequent fields first.
func FormatLookupSummary(r *models.LookupReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rows processed:   %d\n", r.RowsProcessed)
	fmt.Fprintf(&b, "Updated:          %d\n", r.Updated)
	fmt.Fprintf(&b, "Descriptions set: %d\n", r.DescriptionsFilled)
	fmt.Fprintf(&b, "Not found:        %d\n", r.NotFound)
	fmt.Fprintf(&b, "Errors:           %d\n", len(r.Errors))

	names := sortedKeys(r.FieldCounts)
	sort.SliceStable(names, func(i, j int) bool {
		return r.FieldCounts[names[i]] > r.FieldCounts[names[j]]
	})
	if len(names) > 0 {
		b.WriteString("Fields found:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %d\n", name, r.FieldCounts[name])
		}
	}
	fmt.Fprintf(&b, "Duration:         %s\n", r.Duration.Round(time.Millisecond))
	return b.String()
}
