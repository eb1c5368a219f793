// Package schema tracks the physical columns of the site table and grows it on demand.
package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/fields"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
	"github.com/fornlamningar/fornlamningar-engine/pkg/repositories"
)

// Registry answers whether a column exists and adds allow-listed columns.
// Create one per batch run; it is safe for concurrent use.
type Registry struct {
	repo      repositories.SiteRepository
	allow     *fields.AllowList
	protected map[string]struct{}
	logger    *zap.Logger

	mu      sync.Mutex
	known   map[string]struct{}
	created []string
}

// NewRegistry creates a Registry over repo. Baseline columns and the key
// column are protected from structured keys.
func NewRegistry(repo repositories.SiteRepository, allow *fields.AllowList, logger *zap.Logger) *Registry {
	protected := make(map[string]struct{}, len(models.BaselineColumns)+1)
	for _, c := range models.BaselineColumns {
		protected[strings.ToLower(c)] = struct{}{}
	}
	protected[strings.ToLower(repo.KeyColumn())] = struct{}{}

	return &Registry{
		repo:      repo,
		allow:     allow,
		protected: protected,
		logger:    logger.Named("schema-registry"),
		known:     make(map[string]struct{}),
	}
}

// HasColumn queries the live schema for key.
func (r *Registry) HasColumn(ctx context.Context, key string) (bool, error) {
	columns, err := r.repo.Columns(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(columns, key), nil
}

// IsProtected reports whether key names a baseline or key column, ignoring case.
func (r *Registry) IsProtected(key string) bool {
	_, ok := r.protected[strings.ToLower(key)]
	return ok
}

// CheckKey reports why key may not become a column, or nil if it may.
func (r *Registry) CheckKey(key string) error {
	if !r.allow.HasKey(key) {
		return fmt.Errorf("key %q: %w", key, apperrors.ErrDisallowedKey)
	}
	if r.IsProtected(key) {
		return fmt.Errorf("key %q: %w", key, apperrors.ErrProtectedColumn)
	}
	return ValidateIdentifier(key)
}

// EnsureColumn makes sure a nullable TEXT column named key exists.
// created is true only when this call added it. A concurrent creation by
// another worker or process counts as success.
func (r *Registry) EnsureColumn(ctx context.Context, key string) (created bool, err error) {
	if err := r.CheckKey(key); err != nil {
		return false, err
	}
	return r.ensure(ctx, key, models.ColumnTypeText)
}

// EnsureBaselineColumn adds one of the baseline helper columns if missing.
// Ingested tables may predate columns such as rest or generatedDescription.
func (r *Registry) EnsureBaselineColumn(ctx context.Context, name string, typ models.ColumnType) (bool, error) {
	if !slices.Contains(models.BaselineColumns, name) {
		return false, fmt.Errorf("%q is not a baseline column: %w", name, apperrors.ErrInvalidIdentifier)
	}
	return r.ensure(ctx, name, typ)
}

func (r *Registry) ensure(ctx context.Context, name string, typ models.ColumnType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[name]; ok {
		return false, nil
	}

	exists, err := r.HasColumn(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		r.known[name] = struct{}{}
		return false, nil
	}

	if err := r.repo.AddColumn(ctx, name, typ); err != nil {
		if errors.Is(err, apperrors.ErrColumnExists) {
			r.logger.Debug("Column created concurrently", zap.String("column", name))
			r.known[name] = struct{}{}
			return false, nil
		}
		return false, err
	}

	r.known[name] = struct{}{}
	r.created = append(r.created, name)
	r.logger.Info("Added column",
		zap.String("table", r.repo.Table()),
		zap.String("column", name),
		zap.String("type", string(typ)))
	return true, nil
}

// Created returns the columns added by this registry, in creation order.
func (r *Registry) Created() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.created)
}

// ExistingAllowedColumns lists allow-listed keys that currently exist as columns,
// in allow-list order.
func (r *Registry) ExistingAllowedColumns(ctx context.Context) ([]string, error) {
	columns, err := r.repo.Columns(ctx)
	if err != nil {
		return nil, err
	}
	var existing []string
	for _, key := range r.allow.Keys() {
		if r.IsProtected(key) {
			continue
		}
		if slices.Contains(columns, key) {
			existing = append(existing, key)
		}
	}
	return existing, nil
}
