package models

import "database/sql"

// Baseline column names of the site table.
const (
	ColumnInspireID            = "inspireid"
	ColumnUUID                 = "uuid"
	ColumnLongitude            = "longitude"
	ColumnLatitude             = "latitude"
	ColumnDescription          = "description"
	ColumnGeneratedDescription = "generatedDescription"
	ColumnItemTitle            = "itemTitle"
	ColumnItemKeyword          = "itemKeyword"
	ColumnVisibility           = "visibility"
	ColumnQuality              = "quality"
	ColumnRest                 = "rest"
)

// BaselineColumns are owned by ingestion, lookup or the batch jobs themselves.
// No structured attribute may ever target one of them.
var BaselineColumns = []string{
	ColumnInspireID,
	ColumnUUID,
	ColumnLongitude,
	ColumnLatitude,
	ColumnDescription,
	ColumnGeneratedDescription,
	ColumnItemTitle,
	ColumnItemKeyword,
	ColumnVisibility,
	ColumnQuality,
	ColumnRest,
}

// EmptyDescriptionMarker is stored as generatedDescription for rows with no
// source text, so they are never selected again.
const EmptyDescriptionMarker = "empty description"

// ColumnType is the storage type of a column added at runtime.
type ColumnType string

const (
	ColumnTypeText    ColumnType = "TEXT"
	ColumnTypeInteger ColumnType = "INTEGER"
)

// SiteDescription is one row as read by the enrichment scan.
type SiteDescription struct {
	Key         string         `db:"site_key"`
	Description sql.NullString `db:"description"`
}

// GenerationCandidate is a row still lacking a generated description.
// Attributes holds the structured columns the prompt is built from.
type GenerationCandidate struct {
	Key         string
	Description string
	Attributes  map[string]string
}

// LookupCandidate is a row to resolve against K-samsök.
type LookupCandidate struct {
	Key         string         `db:"site_key"`
	UUID        string         `db:"uuid"`
	Description sql.NullString `db:"description"`
}

// SiteLookup holds the values fetched from K-samsök for one site.
type SiteLookup struct {
	Title       string
	Keywords    string // JSON array
	Description string
}

// SiteStats are coarse counts over the site table.
type SiteStats struct {
	Total                    int `db:"total"`
	WithDescription          int `db:"with_description"`
	WithGeneratedDescription int `db:"with_generated"`
	WithTitle                int `db:"with_title"`
}
