package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/ksamsok"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
	"github.com/fornlamningar/fornlamningar-engine/pkg/repositories"
)

type fakeFetcher struct {
	sites map[string]*ksamsok.Site
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) GetSite(ctx context.Context, siteUUID string) (*ksamsok.Site, error) {
	f.calls = append(f.calls, siteUUID)
	if err, ok := f.errs[siteUUID]; ok {
		return nil, err
	}
	if site, ok := f.sites[siteUUID]; ok {
		return site, nil
	}
	return nil, fmt.Errorf("site record %s: %w", siteUUID, apperrors.ErrNotFound)
}

func TestMetadataLookup_Run(t *testing.T) {
	repo := repositories.NewMockSiteRepository()
	repo.AddRow("u1", map[string]any{models.ColumnDescription: "Class: Fornlämning"})
	repo.AddRow("u2", nil)
	repo.AddRow("u3", nil)
	repo.AddRow("u4", nil)

	fetcher := &fakeFetcher{
		sites: map[string]*ksamsok.Site{
			"u1": {
				Title:       "Stensättning",
				Keywords:    []string{"Grav"},
				Description: "Title: Stensättning",
				Fields:      []string{ksamsok.FieldURL},
			},
			"u2": {
				Title:       "Röse",
				Description: "Title: Röse\n\nBeskrivning: Rund.",
				Fields:      []string{"Beskrivning", ksamsok.FieldURL},
			},
		},
		errs: map[string]error{"u4": errors.New("status 500")},
	}

	svc := NewMetadataLookupService(repo, fetcher, MetadataLookupConfig{}, zap.NewNop())
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.RowsProcessed)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.DescriptionsFilled)
	assert.Equal(t, 1, report.NotFound)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "u4", report.Errors[0].Key)
	assert.Equal(t, map[string]int{ksamsok.FieldURL: 2, "Beskrivning": 1}, report.FieldCounts)

	u1 := repo.Row("u1")
	assert.Equal(t, "Stensättning", u1[models.ColumnItemTitle])
	assert.Equal(t, `["Grav"]`, u1[models.ColumnItemKeyword])
	assert.Equal(t, "Class: Fornlämning", u1[models.ColumnDescription], "existing descriptions are kept")

	u2 := repo.Row("u2")
	assert.Equal(t, "Title: Röse\n\nBeskrivning: Rund.", u2[models.ColumnDescription])
	assert.Nil(t, u2[models.ColumnItemKeyword])
}

func TestMetadataLookup_OnlyMissingAndLimit(t *testing.T) {
	repo := repositories.NewMockSiteRepository()
	repo.AddRow("a", map[string]any{models.ColumnItemTitle: "Known"})
	repo.AddRow("b", nil)
	repo.AddRow("c", nil)

	fetcher := &fakeFetcher{sites: map[string]*ksamsok.Site{
		"b": {Title: "B"},
		"c": {Title: "C"},
	}}

	svc := NewMetadataLookupService(repo, fetcher, MetadataLookupConfig{OnlyMissing: true, Limit: 1}, zap.NewNop())
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, fetcher.calls)
	assert.Equal(t, 1, report.Updated)
	assert.Nil(t, repo.Row("c")[models.ColumnItemTitle])
}

func TestMetadataLookup_ContextCanceled(t *testing.T) {
	repo := repositories.NewMockSiteRepository()
	repo.AddRow("a", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewMetadataLookupService(repo, &fakeFetcher{}, MetadataLookupConfig{}, zap.NewNop())
	_, err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatLookupSummary(t *testing.T) {
	out := FormatLookupSummary(&models.LookupReport{
		RowsProcessed: 3,
		FieldCounts:   map[string]int{"URL": 1, "Beskrivning": 3},
	})
	assert.Contains(t, out, "Rows processed:   3")
	assert.Contains(t, out, "Fields found:\n  Beskrivning: 3\n  URL: 1\n")
}
