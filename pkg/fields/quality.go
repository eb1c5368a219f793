package fields

import (
	"regexp"
	"strings"
)

// Keys of the attributes the heuristics read.
const (
	PlacementKey   = "placering"
	DescriptionKey = "beskrivning"
)

// Visibility and quality scores.
const (
	ScoreLow    = 0
	ScoreMedium = 1
	ScoreHigh   = 2
)

var (
	disclaimerRegex = regexp.MustCompile(`(?i)Beskrivningen är inte kvalitetssäkrad\.?|Information kan saknas, vara felaktig eller inaktuell\.?|Se även\s+Inventeringsbok\.?`)
	urlRegex        = regexp.MustCompile(`(?i)https?://\S+`)
	measureRegex    = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:m|meter|cm|mm)\b`)
)

// Lowercase phrases checked by substring match. Go's \b is ASCII-only, so the
// Swedish terms are not expressed as word-boundary regexes.
var (
	notVisibleTerms = []string{"ej synlig", "undermark", "under mark", "övertäckt", "under vatten"}
	visibleTerms    = []string{"synlig ovan mark", "tydligt synlig", "ovan mark"}
	featureHints    = []string{
		"kantkedja", "rest sten", "stenkista", "mittgrop", "kerb", "cist",
		"skyttevärn", "häll", "hällrist", "älvkvarn", "kantställd", "vall",
		"röse", "stensättning", "tomtning",
	}
)

// maxMeasureScore caps how much measurements alone contribute to DetailScore.
const maxMeasureScore = 5

// ComputeVisibility scores how visible a site is from its placement value:
// 0 when under ground or covered, 2 when visible above ground, 1 otherwise.
func ComputeVisibility(fields map[string]string) int {
	placement := strings.ToLower(fields[PlacementKey])
	for _, term := range notVisibleTerms {
		if strings.Contains(placement, term) {
			return ScoreLow
		}
	}
	for _, term := range visibleTerms {
		if strings.Contains(placement, term) {
			return ScoreHigh
		}
	}
	return ScoreMedium
}

// ComputeQuality scores how trustworthy and rich a description is.
// A missing Swedish description or a quality disclaimer yields 0; a detail
// score of 4 or more yields 2; anything else 1.
func ComputeQuality(original string, fields map[string]string) int {
	desc := fields[DescriptionKey]
	if strings.TrimSpace(desc) == "" {
		return ScoreLow
	}
	if HasDisclaimer(original) || HasDisclaimer(desc) {
		return ScoreLow
	}
	if DetailScore(desc) >= 4 {
		return ScoreHigh
	}
	return ScoreMedium
}

// HasDisclaimer reports whether text contains one of the known
// "not quality assured" sentences.
func HasDisclaimer(text string) bool {
	return disclaimerRegex.MatchString(text)
}

// StripDisclaimers removes the known disclaimer sentences and any URLs.
func StripDisclaimers(text string) string {
	text = disclaimerRegex.ReplaceAllString(text, "")
	text = urlRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// DetailScore counts measurements (capped) and feature hints in desc.
func DetailScore(desc string) int {
	if desc == "" {
		return 0
	}
	score := len(measureRegex.FindAllString(desc, -1))
	if score > maxMeasureScore {
		score = maxMeasureScore
	}
	low := strings.ToLower(desc)
	for _, hint := range featureHints {
		if strings.Contains(low, hint) {
			score++
		}
	}
	return score
}
