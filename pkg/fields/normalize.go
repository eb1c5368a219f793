// Package fields parses the sectioned free-text descriptions of site records
// into structured attribute fields.
package fields

import "strings"

// accentFolder maps the accented characters that occur in the label
// vocabulary to their unaccented Latin equivalents.
var accentFolder = strings.NewReplacer(
	"å", "a", "Å", "A",
	"ä", "a", "Ä", "A",
	"á", "a", "Á", "A",
	"à", "a", "À", "A",
	"â", "a", "Â", "A",
	"ö", "o", "Ö", "O",
	"ó", "o", "Ó", "O",
	"ò", "o", "Ò", "O",
	"ô", "o", "Ô", "O",
	"ø", "o", "Ø", "O",
	"é", "e", "É", "E",
	"è", "e", "È", "E",
	"ê", "e", "Ê", "E",
	"ë", "e", "Ë", "E",
	"ü", "u", "Ü", "U",
	"ú", "u", "Ú", "U",
	"ù", "u", "Ù", "U",
	"í", "i", "Í", "I",
	"ì", "i", "Ì", "I",
	"ç", "c", "Ç", "C",
	"ñ", "n", "Ñ", "N",
	"æ", "ae", "Æ", "AE",
)

// Normalize converts a display label into its storage key: accents folded,
// spaces replaced with underscores, lowercased.
//
//	Normalize("Antikvarisk bedömning") == "antikvarisk_bedomning"
func Normalize(label string) string {
	key := accentFolder.Replace(label)
	key = strings.ReplaceAll(key, " ", "_")
	return strings.ToLower(key)
}
