package ksamsok

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fornlamningar/fornlamningar-engine/pkg/jsonutil"
)

// lamningPrefix identifies the archaeological site entity in a record graph.
const lamningPrefix = "http://kulturarvsdata.se/raa/lamning/"

// ErrNoMainEntity is returned when a record has no site entity in its @graph.
var ErrNoMainEntity = errors.New("no site entity in record")

// Field names counted for entries that have no ksam:type of their own.
const (
	FieldGeographic   = "geographic"
	FieldOrganization = "organization"
	FieldBuildDate    = "buildDate"
	FieldLastChanged  = "lastChanged"
	FieldURL          = "url"
)

// Site is the subset of a K-samsök record the lookup job persists.
type Site struct {
	ID          string
	Title       string
	ClassName   string
	Keywords    []string
	Description string   // "Label: value" sections joined by a blank line
	Fields      []string // names of the sections found, for frequency stats
}

// KeywordsJSON encodes Keywords as a JSON array with non-ASCII left intact.
// It returns "" when there are no keywords.
func (s *Site) KeywordsJSON() (string, error) {
	if len(s.Keywords) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.Keywords); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

type entity map[string]any

// ParseSite extracts a Site from a JSON-LD record.
func ParseSite(body []byte) (*Site, error) {
	var doc struct {
		Graph []entity `json:"@graph"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}

	byID := make(map[string]entity, len(doc.Graph))
	var main entity
	for _, e := range doc.Graph {
		id, _ := e["@id"].(string)
		if id == "" {
			continue
		}
		byID[id] = e
		if main == nil && strings.HasPrefix(id, lamningPrefix) {
			main = e
		}
	}
	if main == nil {
		return nil, ErrNoMainEntity
	}

	site := &Site{
		ID:        main["@id"].(string),
		Title:     literal(main["ksam:itemTitle"]),
		ClassName: literal(main["ksam:itemClassName"]),
		Keywords:  literals(main["ksam:itemKeyword"]),
	}

	var parts []string
	add := func(field, label, value string) {
		if value == "" {
			return
		}
		parts = append(parts, label+": "+value)
		if field != "" {
			site.Fields = append(site.Fields, field)
		}
	}

	add("", "Title", site.Title)
	add("", "Class", site.ClassName)

	typed := func(key, valueKey string) {
		for _, id := range refs(main[key]) {
			ref, ok := byID[id]
			if !ok {
				continue
			}
			typ := literal(ref["ksam:type"])
			if typ == "" {
				typ = "Unknown"
			}
			add(typ, typ, literal(ref[valueKey]))
		}
	}

	typed("ksam:itemDescription", "ksam:desc")

	if geo := geographic(main, byID); geo != "" {
		parts = append(parts, geo)
		site.Fields = append(site.Fields, FieldGeographic)
	}

	typed("ksam:itemSpecification", "ksam:spec")
	typed("ksam:itemNumber", "ksam:number")

	add(FieldOrganization, "Organization", literal(main["ksam:serviceOrganization"]))
	add(FieldBuildDate, "Build Date", literal(main["ksam:buildDate"]))
	add(FieldLastChanged, "Last Changed", literal(main["ksam:lastChangedDate"]))
	add(FieldURL, "URL", literal(main["ksam:url"]))

	site.Description = strings.Join(parts, "\n\n")
	return site, nil
}

// geographic renders the site's context entity as one " | "-joined line.
func geographic(main entity, byID map[string]entity) string {
	ids := refs(main["ksam:context"])
	if len(ids) == 0 {
		return ""
	}
	ctxEntity, ok := byID[ids[0]]
	if !ok {
		return ""
	}

	var geo []string
	for _, g := range []struct{ label, key string }{
		{"Province", "ksam:provinceName"},
		{"County", "ksam:countyName"},
		{"Municipality", "ksam:municipalityName"},
		{"Parish", "ksam:parishName"},
	} {
		if v := literal(ctxEntity[g.key]); v != "" {
			geo = append(geo, g.label+": "+v)
		}
	}
	return strings.Join(geo, " | ")
}

// literal reads a JSON-LD value: a plain scalar, a {"@value": ...} object,
// or the first non-empty element of an array.
func literal(v any) string {
	switch t := v.(type) {
	case string, float64, bool:
		return jsonutil.ScalarString(t)
	case map[string]any:
		if inner, ok := t["@value"]; ok {
			return literal(inner)
		}
		if id, ok := t["@id"].(string); ok {
			return id
		}
	case []any:
		for _, item := range t {
			if s := literal(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func literals(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s := literal(v); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := literal(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// refs returns the @id values of a single reference object or a list of them.
func refs(v any) []string {
	switch t := v.(type) {
	case map[string]any:
		if id, ok := t["@id"].(string); ok {
			return []string{id}
		}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, refs(item)...)
		}
		return out
	}
	return nil
}
