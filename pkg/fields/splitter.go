package fields

import "strings"

// SegmentSeparator is the section boundary used by the source descriptions.
const SegmentSeparator = "\n\n"

// NoDescription is the sentinel outcome reported for empty input text.
const NoDescription = "no description available"

// Result is the outcome of splitting one description.
type Result struct {
	// Fields maps normalized keys to trimmed values.
	Fields map[string]string
	// Remainder holds every unrecognized segment, in input order, joined by
	// SegmentSeparator.
	Remainder string
	// Empty is set when the input text was missing or blank. Fields and
	// Remainder are then zero; callers treat this as a terminal state.
	Empty bool
}

// Splitter classifies description segments against an allow-list.
type Splitter struct {
	allow *AllowList
	// compositeSep, when non-empty, splits a segment such as
	// "Province: X | County: Y" into its parts when every part is recognized.
	compositeSep string
}

// NewSplitter returns a Splitter. An empty compositeSep disables composite
// segment expansion.
func NewSplitter(allow *AllowList, compositeSep string) *Splitter {
	return &Splitter{allow: allow, compositeSep: compositeSep}
}

// AllowList returns the allow-list this splitter matches against.
func (s *Splitter) AllowList() *AllowList {
	return s.allow
}

// Split parses text with the given allow-list and no composite expansion.
func Split(text string, allow *AllowList) Result {
	return NewSplitter(allow, "").Split(text)
}

// Split partitions text on blank lines and classifies each segment.
//
// A segment is recognized when the text before its first colon, trimmed, is
// an exact allow-list label; its trimmed value is stored under the label's
// normalized key (later occurrences overwrite earlier ones). All other
// segments, including those without a colon, go to the remainder unchanged
// apart from the newlines around them.
func (s *Splitter) Split(text string) Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return Result{Empty: true}
	}

	res := Result{Fields: make(map[string]string)}
	var rest []string

	for _, raw := range strings.Split(text, SegmentSeparator) {
		segment := strings.TrimSpace(raw)
		if segment == "" {
			continue
		}
		if parts, ok := s.expand(segment); ok {
			for _, p := range parts {
				res.Fields[p.key] = p.value
			}
			continue
		}
		if key, value, ok := s.classify(segment); ok {
			res.Fields[key] = value
			continue
		}
		rest = append(rest, strings.Trim(raw, "\n"))
	}

	res.Remainder = strings.Join(rest, SegmentSeparator)
	return res
}

// classify returns the normalized key and value of a recognized segment.
func (s *Splitter) classify(segment string) (string, string, bool) {
	label, value, found := strings.Cut(segment, ":")
	if !found {
		return "", "", false
	}
	label = strings.TrimSpace(label)
	if !s.allow.Contains(label) {
		return "", "", false
	}
	return Normalize(label), strings.TrimSpace(value), true
}

type field struct {
	key   string
	value string
}

// expand splits a composite segment into its parts. It reports false unless
// every part is a recognized "Label: value" pair, in which case the segment
// is classified whole.
func (s *Splitter) expand(segment string) ([]field, bool) {
	if s.compositeSep == "" || !strings.Contains(segment, s.compositeSep) {
		return nil, false
	}

	raw := strings.Split(segment, s.compositeSep)
	parts := make([]field, 0, len(raw))
	for _, p := range raw {
		key, value, ok := s.classify(strings.TrimSpace(p))
		if !ok {
			return nil, false
		}
		parts = append(parts, field{key: key, value: value})
	}
	return parts, true
}
