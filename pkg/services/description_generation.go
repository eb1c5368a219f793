package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/fields"
	"github.com/fornlamningar/fornlamningar-engine/pkg/llm"
	"github.com/fornlamningar/fornlamningar-engine/pkg/logging"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
	"github.com/fornlamningar/fornlamningar-engine/pkg/prompts"
	"github.com/fornlamningar/fornlamningar-engine/pkg/repositories"
	"github.com/fornlamningar/fornlamningar-engine/pkg/schema"
)

// ErrEmptyGeneration is reported for rows whose trimmed model output is empty.
var ErrEmptyGeneration = errors.New("generator returned no usable text")

// DescriptionGenerationConfig controls one generation batch.
type DescriptionGenerationConfig struct {
	SelectorColumn string
	SelectorValue  string
	PageSize       int
}

// DescriptionGenerationService writes English visitor descriptions for a
// random page of sites that do not have one yet.
type DescriptionGenerationService struct {
	repo      repositories.SiteRepository
	allow     *fields.AllowList
	generator llm.Generator
	pool      *llm.WorkerPool
	config    DescriptionGenerationConfig
	logger    *zap.Logger
}

// NewDescriptionGenerationService creates a new generation service.
// generator is typically wrapped with llm.WithCircuitBreaker by the caller.
func NewDescriptionGenerationService(
	repo repositories.SiteRepository,
	allow *fields.AllowList,
	generator llm.Generator,
	pool *llm.WorkerPool,
	config DescriptionGenerationConfig,
	logger *zap.Logger,
) *DescriptionGenerationService {
	if config.PageSize < 1 {
		config.PageSize = 50
	}
	return &DescriptionGenerationService{
		repo:      repo,
		allow:     allow,
		generator: generator,
		pool:      pool,
		config:    config,
		logger:    logger.Named("description-generation"),
	}
}

type generationOutcome struct {
	text  string
	empty bool
}

// Run generates and persists descriptions for one page of candidates.
// A missing selector column is fatal; every other failure is a row error
// and leaves the row eligible for the next run.
func (s *DescriptionGenerationService) Run(ctx context.Context) (*models.GenerationReport, error) {
	start := time.Now()
	report := &models.GenerationReport{RunID: uuid.New()}
	registry := schema.NewRegistry(s.repo, s.allow, s.logger)

	hasSelector, err := registry.HasColumn(ctx, s.config.SelectorColumn)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	if !hasSelector {
		return nil, fmt.Errorf("%s: %w (run enrich first)", s.config.SelectorColumn, apperrors.ErrSelectorMissing)
	}

	if _, err := registry.EnsureBaselineColumn(ctx, models.ColumnGeneratedDescription, models.ColumnTypeText); err != nil {
		return nil, fmt.Errorf("ensure %s column: %w", models.ColumnGeneratedDescription, err)
	}

	columns, err := s.repo.Columns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	var attrs []string
	for _, a := range prompts.SiteAttributes {
		if slices.Contains(columns, a) {
			attrs = append(attrs, a)
		}
	}

	candidates, err := s.repo.ListGenerationCandidates(ctx,
		s.config.SelectorColumn, s.config.SelectorValue, attrs, s.config.PageSize)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	report.Selected = len(candidates)

	s.logger.Info("Starting description generation",
		zap.String("run_id", report.RunID.String()),
		zap.String("model", s.generator.Model()),
		zap.Int("candidates", len(candidates)),
		zap.Int("max_concurrent", s.pool.MaxConcurrent()))

	items := make([]llm.WorkItem[generationOutcome], 0, len(candidates))
	for _, c := range candidates {
		items = append(items, llm.WorkItem[generationOutcome]{
			ID: c.Key,
			Execute: func(ctx context.Context) (generationOutcome, error) {
				return s.generate(ctx, c)
			},
		})
	}

	llm.Process(ctx, s.pool, items, func(r llm.WorkResult[generationOutcome], completed, total int) {
		if r.Err != nil {
			report.Errors = append(report.Errors, models.RowError{Key: r.ID, Message: r.Err.Error()})
			s.logger.Warn("Generation failed", zap.String("key", r.ID), zap.Error(r.Err))
			return
		}
		if err := s.repo.SetGeneratedDescription(ctx, r.ID, r.Result.text); err != nil {
			s.logger.Warn("Failed to store description", zap.String("key", r.ID), zap.Error(err))
			report.Errors = append(report.Errors, models.RowError{
				Key:     r.ID,
				Column:  models.ColumnGeneratedDescription,
				Message: err.Error(),
			})
			return
		}
		if r.Result.empty {
			report.EmptyMarks++
		} else {
			report.Generated++
		}
		s.logger.Debug("Stored description",
			zap.String("key", r.ID),
			zap.Int("completed", completed),
			zap.Int("total", total))
	})

	report.Duration = time.Since(start)
	s.logger.Info("Description generation complete",
		zap.String("run_id", report.RunID.String()),
		zap.Int("selected", report.Selected),
		zap.Int("generated", report.Generated),
		zap.Int("empty_marks", report.EmptyMarks),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (s *DescriptionGenerationService) generate(ctx context.Context, c models.GenerationCandidate) (generationOutcome, error) {
	source := prompts.BuildSiteDescription(c)
	if source == "" {
		return generationOutcome{text: models.EmptyDescriptionMarker, empty: true}, nil
	}

	raw, err := s.generator.Generate(ctx, source, prompts.SiteDescriptionInstructions)
	if err != nil {
		return generationOutcome{}, err
	}

	text := TrimGeneratedText(raw)
	if text == "" {
		s.logger.Warn("Discarding empty generation",
			zap.String("key", c.Key),
			zap.String("raw", logging.TruncateString(raw, 120)))
		return generationOutcome{}, ErrEmptyGeneration
	}
	return generationOutcome{text: text}, nil
}

// TrimGeneratedText keeps only the first paragraph of model output and drops
// anything from the first markdown heading marker on.
func TrimGeneratedText(raw string) string {
	text := raw
	if i := strings.Index(text, "\n\n"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimPrefix(text, "\n")
	if i := strings.Index(text, "#"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// FormatGenerationSummary renders a report for terminal output.
func FormatGenerationSummary(r *models.GenerationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rows selected:    %d\n", r.Selected)
	fmt.Fprintf(&b, "Generated:        %d\n", r.Generated)
	fmt.Fprintf(&b, "Marked empty:     %d\n", r.EmptyMarks)
	fmt.Fprintf(&b, "Errors:           %d\n", len(r.Errors))
	fmt.Fprintf(&b, "Duration:         %s\n", r.Duration.Round(time.Millisecond))
	return b.String()
}
