package core

// =============================================================================
// Confidence
// =============================================================================

// Confidence is the qualitative trust level of a resolved location,
// reflecting how directly the underlying fact reported it.
type Confidence string

// Confidence tiers.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// =============================================================================
// Location
// =============================================================================

// DefaultSpan is the column span of the fallback location. Renderers always
// get a navigable, non-empty range even when no extractor matched.
const DefaultSpan = 20

// Location is a resolved source range. Coordinates are 1-based and
// internally consistent: end >= start on both axes, never zero-width.
type Location struct {
	StartLine   int        `json:"start_line"`
	StartColumn int        `json:"start_column"`
	EndLine     int        `json:"end_line"`
	EndColumn   int        `json:"end_column"`
	// Source names the extractor that produced this location.
	Source     string     `json:"source"`
	Confidence Confidence `json:"confidence"`
	// Found is false when the fallback location was used.
	Found bool `json:"found"`
}

// FallbackLocation returns the location used when no extractor matched.
func FallbackLocation() Location {
	return Location{
		StartLine:   1,
		StartColumn: 1,
		EndLine:     1,
		EndColumn:   DefaultSpan,
		Source:      "fallback",
		Confidence:  ConfidenceLow,
		Found:       false,
	}
}

// =============================================================================
// Issue
// =============================================================================

// Issue is one fired rule for one analysis unit.
type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// File is the relative path the issue attaches to, or GlobalFileName.
	File string `json:"file"`
	// Details carries the fact-defined payload. Its internal shape depends on
	// which fact produced it and is not standardized.
	Details map[string]any `json:"details,omitempty"`
	// Snippet is the matched text, when the producing fact captured one.
	Snippet string `json:"snippet,omitempty"`
	// Location is the resolved source range. Every emitted issue has exactly one.
	Location Location `json:"location"`
	// Exempt marks issues suppressed by a currently-valid exemption.
	Exempt bool `json:"exempt,omitempty"`
	// ExemptReason echoes the exemption's free-text reason when Exempt is set.
	ExemptReason string `json:"exempt_reason,omitempty"`
}
