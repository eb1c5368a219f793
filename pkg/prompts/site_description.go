// Package prompts builds the text sent to the description generator.
package prompts

import (
	"strings"

	"github.com/fornlamningar/fornlamningar-engine/pkg/fields"
	"github.com/fornlamningar/fornlamningar-engine/pkg/models"
)

// SiteDescriptionInstructions are sent with every site text.
const SiteDescriptionInstructions = `Write a concise description in English (1–3 sentences) for visitors.
Use the details under "Description (sv)" first (type, size, shape, structure, features, vegetation).
Add terrain/orientation only if space allows.
Do NOT include any headers like 'Site description:' or repeat the classification.
Do NOT mention reference numbers, status, verification, or data quality.
Return ONLY the description text.`

// Attribute columns (normalized keys) the site text is built from.
const (
	AttrClass       = "class"
	AttrKlass       = "klass"
	AttrTerrain     = "terrang"
	AttrOrientation = "orientering"
)

// SiteAttributes lists the columns BuildSiteDescription reads, in prompt order.
var SiteAttributes = []string{AttrClass, AttrKlass, fields.DescriptionKey, AttrTerrain, AttrOrientation}

// BuildSiteDescription assembles the generator input from the class, the Swedish
// description with disclaimers removed, terrain and orientation.
// Rows without a structured description fall back to the cleaned full text.
// An empty result means there is nothing to describe.
func BuildSiteDescription(c models.GenerationCandidate) string {
	desc := fields.StripDisclaimers(c.Attributes[fields.DescriptionKey])
	if desc == "" {
		return fields.StripDisclaimers(c.Description)
	}

	var parts []string
	class := strings.TrimSpace(c.Attributes[AttrClass])
	if class == "" {
		class = strings.TrimSpace(c.Attributes[AttrKlass])
	}
	if class != "" {
		parts = append(parts, class)
	}
	parts = append(parts, "Description (sv): "+desc)
	if v := strings.TrimSpace(c.Attributes[AttrTerrain]); v != "" {
		parts = append(parts, "Terrain (sv): "+v)
	}
	if v := strings.TrimSpace(c.Attributes[AttrOrientation]); v != "" {
		parts = append(parts, "Orientation (sv): "+v)
	}
	return strings.Join(parts, "\n")
}
