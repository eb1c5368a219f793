package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RowError records a failure for one row, optionally narrowed to a column.
type RowError struct {
	Key     string `json:"key"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// RejectedKey is a structured key that was produced by the splitter but is not
// backed by the allow-list, so no column was created for it.
type RejectedKey struct {
	Key    string `json:"key"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// FieldEnrichmentReport summarizes one description splitting run.
type FieldEnrichmentReport struct {
	RunID          uuid.UUID     `json:"run_id"`
	RowsProcessed  int           `json:"rows_processed"`
	RowsUpdated    int           `json:"rows_updated"`
	EmptyRows      []string      `json:"empty_rows"`
	RowsDeleted    int           `json:"rows_deleted"`
	ColumnsCreated []string      `json:"columns_created"`
	RejectedKeys   []RejectedKey `json:"rejected_keys"`
	Errors         []RowError    `json:"errors"`
	Duration       time.Duration `json:"duration"`

	mu sync.Mutex
}

// NewFieldEnrichmentReport starts a report with a fresh run ID.
func NewFieldEnrichmentReport() *FieldEnrichmentReport {
	return &FieldEnrichmentReport{RunID: uuid.New()}
}

// AddEmpty records a row without description.
func (r *FieldEnrichmentReport) AddEmpty(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RowsProcessed++
	r.EmptyRows = append(r.EmptyRows, key)
}

// AddUpdated records a row that was written.
func (r *FieldEnrichmentReport) AddUpdated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RowsProcessed++
	r.RowsUpdated++
}

// AddFailed records a processed row that could not be written at all.
func (r *FieldEnrichmentReport) AddFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RowsProcessed++
}

// AddRejected records a key refused by the schema registry.
func (r *FieldEnrichmentReport) AddRejected(rk RejectedKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RejectedKeys = append(r.RejectedKeys, rk)
}

// AddError records a row failure.
func (r *FieldEnrichmentReport) AddError(e RowError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, e)
}

// GenerationReport summarizes one description generation batch.
type GenerationReport struct {
	RunID      uuid.UUID     `json:"run_id"`
	Selected   int           `json:"selected"`
	Generated  int           `json:"generated"`
	EmptyMarks int           `json:"empty_marks"`
	Errors     []RowError    `json:"errors"`
	Duration   time.Duration `json:"duration"`
}

// LookupReport summarizes one K-samsök lookup run.
type LookupReport struct {
	RunID              uuid.UUID      `json:"run_id"`
	RowsProcessed      int            `json:"rows_processed"`
	Updated            int            `json:"updated"`
	DescriptionsFilled int            `json:"descriptions_filled"`
	NotFound           int            `json:"not_found"`
	FieldCounts        map[string]int `json:"field_counts"`
	Errors             []RowError     `json:"errors"`
	Duration           time.Duration  `json:"duration"`
}
