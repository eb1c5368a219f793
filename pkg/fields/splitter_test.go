package fields

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Class", "class"},
		{"Skadestatus", "skadestatus"},
		{"Undersökningsstatus", "undersokningsstatus"},
		{"Antikvarisk bedömning", "antikvarisk_bedomning"},
		{"Terräng", "terrang"},
		{"RAÄ-nummer", "raa-nummer"},
		{"Build Date", "build_date"},
		{"Åker Ängsmark", "aker_angsmark"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.label))
		})
	}
}

func TestNormalize_DefaultLabelsAreInjective(t *testing.T) {
	seen := make(map[string]string)
	for _, label := range DefaultLabels {
		key := Normalize(label)
		if other, ok := seen[key]; ok {
			t.Fatalf("labels %q and %q both normalize to %q", other, label, key)
		}
		seen[key] = label
	}
}

func TestSplit_EndToEnd(t *testing.T) {
	allow := MustAllowList([]string{"Class", "Skadestatus"})

	res := Split("Class: Grave\n\nSkadestatus: Intact\n\nSome unrelated note: foo", allow)

	require.False(t, res.Empty)
	assert.Equal(t, map[string]string{"class": "Grave", "skadestatus": "Intact"}, res.Fields)
	assert.Equal(t, "Some unrelated note: foo", res.Remainder)
}

func TestSplit_LastWriteWins(t *testing.T) {
	allow := MustAllowList([]string{"Province"})

	res := Split("Province: A\n\nProvince: B", allow)

	assert.Equal(t, "B", res.Fields["province"])
	assert.Empty(t, res.Remainder)
}

func TestSplit_RemainderPreservesOrder(t *testing.T) {
	allow := MustAllowList([]string{"Class"})

	res := Split("X: one\n\nClass: Boplats\n\nY two\n\nZ: three", allow)

	assert.Equal(t, "X: one\n\nY two\n\nZ: three", res.Remainder)
	assert.Equal(t, "Boplats", res.Fields["class"])
}

func TestSplit_CaseMismatchIsNotRecognized(t *testing.T) {
	allow := MustAllowList([]string{"Skadestatus"})

	res := Split("skadestatus: Skadad\n\nSKADESTATUS: Skadad", allow)

	assert.Empty(t, res.Fields)
	assert.Equal(t, "skadestatus: Skadad\n\nSKADESTATUS: Skadad", res.Remainder)
}

func TestSplit_AccentMismatchIsNotRecognized(t *testing.T) {
	allow := MustAllowList([]string{"Terräng"})

	res := Split("Terrang: Skog", allow)

	assert.Empty(t, res.Fields)
	assert.Equal(t, "Terrang: Skog", res.Remainder)
}

func TestSplit_WhitespaceDoesNotAffectMatching(t *testing.T) {
	allow := MustAllowList([]string{"Placering"})

	res := Split("   Placering   :   Ovan mark  \n\n", allow)

	assert.Equal(t, map[string]string{"placering": "Ovan mark"}, res.Fields)
	assert.Empty(t, res.Remainder)
}

func TestSplit_SegmentWithoutColonGoesToRemainder(t *testing.T) {
	allow := MustAllowList([]string{"Beskrivning"})

	res := Split("Beskrivning\n\nBeskrivningen är inte kvalitetssäkrad.", allow)

	assert.Empty(t, res.Fields)
	assert.Equal(t, "Beskrivning\n\nBeskrivningen är inte kvalitetssäkrad.", res.Remainder)
}

func TestSplit_ValueKeepsLaterColonsAndLines(t *testing.T) {
	allow := MustAllowList([]string{"Beskrivning", "URL"})

	res := Split("Beskrivning: Stensättning, 5 m diam.\nMed kantkedja: delvis synlig.\n\nURL: http://kulturarvsdata.se/raa/lamning/abc", allow)

	assert.Equal(t, "Stensättning, 5 m diam.\nMed kantkedja: delvis synlig.", res.Fields["beskrivning"])
	assert.Equal(t, "http://kulturarvsdata.se/raa/lamning/abc", res.Fields["url"])
}

func TestSplit_RemainderKeepsSegmentWhitespace(t *testing.T) {
	allow := MustAllowList([]string{"Class"})

	res := Split("Class: Hög\n\n  indented note  \n\n\nTrailing text", allow)

	assert.Equal(t, "  indented note  \n\nTrailing text", res.Remainder)
}

func TestSplit_CRLFInput(t *testing.T) {
	allow := MustAllowList([]string{"Class"})

	res := Split("Class: Fossil åker\r\n\r\nNote", allow)

	assert.Equal(t, "Fossil åker", res.Fields["class"])
	assert.Equal(t, "Note", res.Remainder)
}

func TestSplit_EmptyInput(t *testing.T) {
	allow := DefaultAllowList()

	for _, text := range []string{"", "   ", "\n\n\n"} {
		res := Split(text, allow)
		assert.True(t, res.Empty, "text %q", text)
		assert.Nil(t, res.Fields)
		assert.Empty(t, res.Remainder)
	}
}

func TestSplit_Idempotent(t *testing.T) {
	s := NewSplitter(DefaultAllowList(), DefaultCompositeSeparator)
	text := "Title: Raä Uppsala 12:1\n\nClass: Gravfält\n\nProvince: Uppland | County: Uppsala län\n\nOkänd rubrik: värde"

	first := s.Split(text)
	second := s.Split(text)

	assert.Equal(t, first, second)
}

func TestSplit_PartitionCompleteness(t *testing.T) {
	allow := MustAllowList([]string{"Class", "Placering"})
	segments := []string{
		"Class: Hög",
		"Oidentifierad: text",
		"Placering: Ovan mark",
		"helt fri text utan kolon",
		"Class Hög utan kolon",
	}

	res := Split(strings.Join(segments, "\n\n"), allow)

	for _, seg := range segments {
		label, value, hasColon := strings.Cut(seg, ":")
		if hasColon && allow.Contains(strings.TrimSpace(label)) {
			assert.Equal(t, strings.TrimSpace(value), res.Fields[Normalize(strings.TrimSpace(label))])
			assert.NotContains(t, res.Remainder, seg)
			continue
		}
		assert.Contains(t, res.Remainder, seg)
	}
}

func TestSplitter_CompositeExpansion(t *testing.T) {
	s := NewSplitter(DefaultAllowList(), DefaultCompositeSeparator)

	res := s.Split("Province: Uppland | County: Uppsala län | Municipality: Uppsala | Parish: Gamla Uppsala")

	assert.Equal(t, map[string]string{
		"province":     "Uppland",
		"county":       "Uppsala län",
		"municipality": "Uppsala",
		"parish":       "Gamla Uppsala",
	}, res.Fields)
	assert.Empty(t, res.Remainder)
}

func TestSplitter_CompositeWithUnknownPartIsClassifiedWhole(t *testing.T) {
	allow := MustAllowList([]string{"Beskrivning", "Class"})
	s := NewSplitter(allow, " | ")

	res := s.Split("Beskrivning: Stenröse 3 m | typ: rund\n\nNote: a | Other: b")

	assert.Equal(t, map[string]string{"beskrivning": "Stenröse 3 m | typ: rund"}, res.Fields)
	assert.Equal(t, "Note: a | Other: b", res.Remainder)
}

func TestSplitter_UnrecognizedCompositeStaysWhole(t *testing.T) {
	allow := MustAllowList([]string{"Class"})
	s := NewSplitter(allow, " | ")

	res := s.Split("Class: Hög\n\nLän: Uppsala | Kommun: Uppsala")

	assert.Equal(t, map[string]string{"class": "Hög"}, res.Fields)
	assert.Equal(t, "Län: Uppsala | Kommun: Uppsala", res.Remainder)
}

func TestSplitter_CompositeRequiresColonInEveryPart(t *testing.T) {
	allow := MustAllowList([]string{"Province"})
	s := NewSplitter(allow, " | ")

	res := s.Split("Province: Uppland | Dalarna")

	assert.Equal(t, "Uppland | Dalarna", res.Fields["province"])
	assert.Empty(t, res.Remainder)
}

func TestSplitter_CompositeDisabled(t *testing.T) {
	allow := MustAllowList([]string{"Province", "County"})

	res := NewSplitter(allow, "").Split("Province: Uppland | County: Uppsala län")

	assert.Equal(t, "Uppland | County: Uppsala län", res.Fields["province"])
	assert.NotContains(t, res.Fields, "county")
}

func TestNewAllowList(t *testing.T) {
	a, err := NewAllowList([]string{"Klass", " Klass ", "", "Antikvarisk bedömning"})
	require.NoError(t, err)

	assert.Equal(t, 2, a.Len())
	assert.Equal(t, []string{"Klass", "Antikvarisk bedömning"}, a.Labels())
	assert.Equal(t, []string{"klass", "antikvarisk_bedomning"}, a.Keys())
	assert.True(t, a.HasKey("antikvarisk_bedomning"))
	assert.False(t, a.HasKey("Klass"))
	assert.True(t, a.Contains("Klass"))
	assert.False(t, a.Contains("klass"))
}

func TestNewAllowList_RejectsKeyClash(t *testing.T) {
	_, err := NewAllowList([]string{"Terräng", "Terrang"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terrang")
}

func TestLoadAllowList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("labels:\n  - Klass\n  - Skadestatus\ncomposite_separator: \"\"\n"), 0o644))

	a, sep, err := LoadAllowList(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Klass", "Skadestatus"}, a.Labels())
	assert.Equal(t, "", sep)
}

func TestLoadAllowList_DefaultSeparator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("labels: [Klass]\n"), 0o644))

	_, sep, err := LoadAllowList(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompositeSeparator, sep)
}

func TestLoadAllowList_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadAllowList(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("labels: []\n"), 0o644))
	_, _, err = LoadAllowList(empty)
	assert.Error(t, err)
}
