package location

import (
	"github.com/archetype-labs/archlint/pkg/core"
)

// fileLevelRules have no meaningful position: they judge the repository or
// a whole file. For these the absence of a position is the correct answer,
// so the pinned location carries medium confidence, not low.
var fileLevelRules = map[string]bool{
	"outdated-dependencies": true,
	"missing-directories":   true,
	"repository-structure":  true,
	"manifest-required":     true,
}

// defaultChain is ordered highest priority first.
var defaultChain = []Extractor{
	{Name: "complexityMetrics", Fn: extractComplexityMetrics},
	{Name: "locationObject", Fn: extractLocationObject},
	{Name: "patternMatches", Fn: extractPatternMatches},
	{Name: "detailsArray", Fn: extractDetailsArray},
	{Name: "lineFields", Fn: extractLineFields},
	{Name: "fileLevelRule", Fn: extractFileLevelRule},
}

// extractComplexityMetrics handles parsed-source complexity payloads:
// complexities[0].metrics.location with explicit start/end coordinates.
func extractComplexityMetrics(_ string, details map[string]any) (Range, bool) {
	complexities := getSlice(details, "complexities")
	if len(complexities) == 0 {
		return Range{}, false
	}
	entry, ok := complexities[0].(map[string]any)
	if !ok {
		return Range{}, false
	}
	loc := getMap(getMap(entry, "metrics"), "location")
	if loc == nil {
		return Range{}, false
	}
	return rangeFromLocation(loc, "high")
}

// extractLocationObject handles a generic location or range object at the
// top of the payload.
func extractLocationObject(_ string, details map[string]any) (Range, bool) {
	for _, key := range []string{"location", "range"} {
		if loc := getMap(details, key); loc != nil {
			if rng, ok := rangeFromLocation(loc, "high"); ok {
				return rng, true
			}
		}
	}
	return Range{}, false
}

// extractPatternMatches handles regex-scan payloads: arrays of entries with
// lineNumber/columnNumber and the matched substring, whose length becomes
// the column span.
func extractPatternMatches(_ string, details map[string]any) (Range, bool) {
	raw, ok := details["matches"]
	if !ok {
		return Range{}, false
	}

	var first map[string]any
	switch m := raw.(type) {
	case []any:
		first = firstMatchEntry(m)
	case map[string]any:
		// Keyed by pattern name; take the first non-empty group.
		for _, group := range m {
			if arr, ok := group.([]any); ok {
				if first = firstMatchEntry(arr); first != nil {
					break
				}
			}
		}
	}
	if first == nil {
		return Range{}, false
	}

	line, okLine := getInt(first, "lineNumber")
	col, okCol := getInt(first, "columnNumber")
	if !okLine {
		return Range{}, false
	}
	if !okCol {
		col = 1
	}
	span := len(getString(first, "match"))
	if span == 0 {
		span = 1
	}
	return Range{
		StartLine:   line,
		StartColumn: col,
		EndLine:     line,
		EndColumn:   col + span,
		Confidence:  "medium",
	}, true
}

// extractDetailsArray handles a flat details array of line-tagged entries.
func extractDetailsArray(_ string, details map[string]any) (Range, bool) {
	for _, entry := range getSlice(details, "details") {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"lineNumber", "line"} {
			if line, ok := getInt(m, key); ok {
				col, okCol := getInt(m, "columnNumber")
				if !okCol {
					col = 1
				}
				return Range{
					StartLine:   line,
					StartColumn: col,
					EndLine:     line,
					EndColumn:   col + core.DefaultSpan,
					Confidence:  "medium",
				}, true
			}
		}
	}
	return Range{}, false
}

// extractLineFields probes for lineNumber/columnNumber fields directly on
// the payload, then one and two levels deep. Confidence is low: the field
// may describe something other than the finding itself.
func extractLineFields(_ string, details map[string]any) (Range, bool) {
	if rng, ok := lineFieldsAt(details); ok {
		return rng, true
	}
	for _, v := range details {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if rng, ok := lineFieldsAt(nested); ok {
			return rng, true
		}
		for _, v2 := range nested {
			if deeper, ok := v2.(map[string]any); ok {
				if rng, ok := lineFieldsAt(deeper); ok {
					return rng, true
				}
			}
		}
	}
	return Range{}, false
}

func lineFieldsAt(m map[string]any) (Range, bool) {
	line, ok := getInt(m, "lineNumber")
	if !ok {
		return Range{}, false
	}
	col, okCol := getInt(m, "columnNumber")
	if !okCol {
		col = 1
	}
	return Range{
		StartLine:   line,
		StartColumn: col,
		EndLine:     line,
		EndColumn:   col + core.DefaultSpan,
		Confidence:  "low",
	}, true
}

// extractFileLevelRule pins rules known to be repository- or file-level to
// the top of the file.
func extractFileLevelRule(rule string, _ map[string]any) (Range, bool) {
	if !fileLevelRules[rule] {
		return Range{}, false
	}
	return Range{
		StartLine:   1,
		StartColumn: 1,
		EndLine:     1,
		EndColumn:   core.DefaultSpan,
		Confidence:  "medium",
	}, true
}

// =============================================================================
// Payload navigation helpers
// =============================================================================

func rangeFromLocation(loc map[string]any, confidence string) (Range, bool) {
	startLine, ok := getInt(loc, "startLine")
	if !ok {
		return Range{}, false
	}
	startCol, _ := getInt(loc, "startColumn")
	endLine, okEnd := getInt(loc, "endLine")
	if !okEnd {
		endLine = startLine
	}
	endCol, _ := getInt(loc, "endColumn")
	return Range{
		StartLine:   startLine,
		StartColumn: startCol,
		EndLine:     endLine,
		EndColumn:   endCol,
		Confidence:  confidence,
	}, true
}

func firstMatchEntry(arr []any) map[string]any {
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	return v
}

func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, ok := m[key].([]any)
	if !ok {
		return nil
	}
	return v
}

// getInt tolerates the numeric types JSON decoding and in-process facts
// produce.
func getInt(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch n := m[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
