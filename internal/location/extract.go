package location

import (
	"github.com/archetype-labs/archlint/pkg/core"
)

// Extract resolves the best location for one issue payload. It never fails:
// when no extractor matches, the fallback {1,1,1,DefaultSpan} is returned
// with Found=false so callers still render something navigable.
func (r *Resolver) Extract(rule string, details map[string]any) core.Location {
	for _, e := range r.chain {
		rng, ok := r.try(e, rule, details)
		if !ok {
			continue
		}
		loc := validate(rng)
		loc.Source = e.Name
		loc.Found = true
		return loc
	}
	return core.FallbackLocation()
}

// try runs one extractor, converting a panic into "no match". A malformed
// payload must never take down the chain; the next extractor gets its turn.
func (r *Resolver) try(e Extractor, rule string, details map[string]any) (rng Range, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug("location extractor panicked", "extractor", e.Name, "rule", rule, "panic", rec)
			ok = false
		}
	}()
	return e.Fn(rule, details)
}

// validate clamps extracted coordinates into the invariants every consumer
// relies on: 1-based, end >= start, and never zero-width.
func validate(rng Range) core.Location {
	startLine := clampMin(rng.StartLine, 1)
	startCol := clampMin(rng.StartColumn, 1)
	endLine := clampMin(rng.EndLine, startLine)
	endCol := clampMin(rng.EndColumn, 1)

	if endLine == startLine && endCol <= startCol {
		// Widen collapsed ranges so renderers never get a zero-width span.
		endCol = startCol + 1
	}

	conf := core.Confidence(rng.Confidence)
	switch conf {
	case core.ConfidenceHigh, core.ConfidenceMedium, core.ConfidenceLow:
	default:
		conf = core.ConfidenceLow
	}

	return core.Location{
		StartLine:   startLine,
		StartColumn: startCol,
		EndLine:     endLine,
		EndColumn:   endCol,
		Confidence:  conf,
	}
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}
