// Package location reconciles the heterogeneous details payloads produced
// by facts into one confident source range per issue.
//
// Each known payload shape is handled by one extractor; extractors run in
// priority order and the first match wins. New shapes are supported by
// appending an extractor, never by deepening ad-hoc probing inside an
// existing one.
package location

import (
	"log/slog"
)

// Extractor attempts one known payload shape. It returns ok=false when the
// shape does not match; any panic is treated the same way.
type Extractor struct {
	Name string
	Fn   func(rule string, details map[string]any) (Range, bool)
}

// Range is an unvalidated extraction result. Confidence is assigned by the
// extractor; coordinates are clamped by Extract before they leave the
// package.
type Range struct {
	StartLine, StartColumn int
	EndLine, EndColumn     int
	Confidence             string
}

// Resolver runs the extractor chain.
type Resolver struct {
	chain  []Extractor
	logger *slog.Logger
}

// New returns a resolver with the default chain.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{chain: defaultChain, logger: logger}
}

// Append adds an extractor at the end of the chain (lowest priority before
// the fallback). Used by plugins contributing new payload shapes.
func (r *Resolver) Append(e Extractor) {
	r.chain = append(r.chain, e)
}
