package fields

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLabels is the built-in allow-list used when no allow-list file is
// configured. It covers the section labels produced by the RAÄ lamning
// records and by the metadata lookup job.
var DefaultLabels = []string{
	"Title",
	"Class",
	"Klass",
	"Skadestatus",
	"Undersökningsstatus",
	"Beskrivning",
	"Placering",
	"Terräng",
	"Orientering",
	"Tradition",
	"Referens",
	"References",
	"Province",
	"County",
	"Municipality",
	"Parish",
	"Aktualitetsstatus",
	"Antikvarisk bedömning",
	"Lämningsnummer",
	"RAÄ-nummer",
	"Organization",
	"Build Date",
	"Last Changed",
	"URL",
}

// DefaultCompositeSeparator joins the geographic sub-fields on one line,
// e.g. "Province: Uppland | County: Uppsala län".
const DefaultCompositeSeparator = " | "

// AllowList is an ordered set of recognized attribute labels.
// Matching is exact: labels are case- and accent-sensitive as authored.
type AllowList struct {
	labels []string
	byText map[string]struct{}
	byKey  map[string]string // normalized key -> label
}

// allowListFile is the on-disk YAML shape of an allow-list.
type allowListFile struct {
	Labels             []string `yaml:"labels"`
	CompositeSeparator *string  `yaml:"composite_separator"`
}

// NewAllowList builds an allow-list from labels, preserving their order.
// Blank labels and exact duplicates are ignored. Two distinct labels that
// normalize to the same key are rejected because they would share a column.
func NewAllowList(labels []string) (*AllowList, error) {
	a := &AllowList{
		byText: make(map[string]struct{}, len(labels)),
		byKey:  make(map[string]string, len(labels)),
	}
	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		if label == "" {
			continue
		}
		if _, dup := a.byText[label]; dup {
			continue
		}
		key := Normalize(label)
		if other, clash := a.byKey[key]; clash {
			return nil, fmt.Errorf("labels %q and %q both normalize to %q", other, label, key)
		}
		a.labels = append(a.labels, label)
		a.byText[label] = struct{}{}
		a.byKey[key] = label
	}
	return a, nil
}

// MustAllowList is NewAllowList for static label sets; it panics on error.
func MustAllowList(labels []string) *AllowList {
	a, err := NewAllowList(labels)
	if err != nil {
		panic(err)
	}
	return a
}

// DefaultAllowList returns the built-in allow-list.
func DefaultAllowList() *AllowList {
	return MustAllowList(DefaultLabels)
}

// LoadAllowList reads an allow-list YAML file:
//
//	labels:
//	  - Klass
//	  - Antikvarisk bedömning
//	composite_separator: " | "
//
// The file is read on every call so edits take effect on the next run.
// The returned separator is DefaultCompositeSeparator unless the file sets one
// (an empty string disables composite expansion).
func LoadAllowList(path string) (*AllowList, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read allow-list: %w", err)
	}

	var file allowListFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, "", fmt.Errorf("parse allow-list %s: %w", path, err)
	}
	if len(file.Labels) == 0 {
		return nil, "", fmt.Errorf("allow-list %s has no labels", path)
	}

	a, err := NewAllowList(file.Labels)
	if err != nil {
		return nil, "", fmt.Errorf("allow-list %s: %w", path, err)
	}

	sep := DefaultCompositeSeparator
	if file.CompositeSeparator != nil {
		sep = *file.CompositeSeparator
	}
	return a, sep, nil
}

// Contains reports whether label is recognized, by exact string match.
func (a *AllowList) Contains(label string) bool {
	_, ok := a.byText[label]
	return ok
}

// HasKey reports whether key is the normalized form of a recognized label.
func (a *AllowList) HasKey(key string) bool {
	_, ok := a.byKey[key]
	return ok
}

// Labels returns the labels in configured order.
func (a *AllowList) Labels() []string {
	out := make([]string, len(a.labels))
	copy(out, a.labels)
	return out
}

// Keys returns the normalized keys in label order.
func (a *AllowList) Keys() []string {
	out := make([]string, 0, len(a.labels))
	for _, l := range a.labels {
		out = append(out, Normalize(l))
	}
	return out
}

// Len returns the number of labels.
func (a *AllowList) Len() int {
	return len(a.labels)
}
