package plugin

import (
	"context"
	"log/slog"

	"github.com/archetype-labs/archlint/pkg/core"
)

// FactContext carries everything a fact may need to produce its value.
// For the global sentinel unit, File.IsGlobal() is true and Files holds
// every real file in the run.
type FactContext struct {
	// File is the unit under evaluation.
	File core.FileData
	// Files is the full file set of the run, for repository-wide facts.
	Files []core.FileData
	// RepoRoot is the absolute path of the repository root.
	RepoRoot string
	// RepoURL is the repository identity, empty when unknown.
	RepoURL string
	// Options is the archetype's config block (minimum versions, expected
	// directory structure, and so on).
	Options map[string]any
	// Logger is never nil.
	Logger *slog.Logger
}

// Fact is a named data producer consumed by rule conditions.
// Evaluate returns a value whose shape is defined by the fact itself;
// the engine treats it as opaque and hands it to operators and the
// location resolver as-is.
type Fact interface {
	Name() string
	Evaluate(ctx context.Context, fc *FactContext) (any, error)
}

// Global facts are evaluated once per run against the sentinel unit
// instead of once per file.
type GlobalFact interface {
	Fact
	Global() bool
}

// Operator is a named predicate over a fact value and a configured
// comparison value from the rule's condition clause.
type Operator interface {
	Name() string
	Apply(factValue, comparison any) (bool, error)
}

// ErrorAction is a recovery hook invoked when a fact or operator fails
// during evaluation of one unit. It may return a substitute fact value;
// returning an error propagates the original failure.
type ErrorAction func(ctx context.Context, fc *FactContext, cause error) (any, error)

// =============================================================================
// Function adapters
// =============================================================================

// FactFunc adapts a function to the Fact interface.
type FactFunc struct {
	FactName string
	IsGlobal bool
	Fn       func(ctx context.Context, fc *FactContext) (any, error)
}

func (f FactFunc) Name() string { return f.FactName }
func (f FactFunc) Global() bool { return f.IsGlobal }

func (f FactFunc) Evaluate(ctx context.Context, fc *FactContext) (any, error) {
	return f.Fn(ctx, fc)
}

// OperatorFunc adapts a function to the Operator interface.
type OperatorFunc struct {
	OpName string
	Fn     func(factValue, comparison any) (bool, error)
}

func (o OperatorFunc) Name() string { return o.OpName }

func (o OperatorFunc) Apply(factValue, comparison any) (bool, error) {
	return o.Fn(factValue, comparison)
}

// IsGlobalFact reports whether f declares itself repository-wide.
func IsGlobalFact(f Fact) bool {
	if g, ok := f.(GlobalFact); ok {
		return g.Global()
	}
	return false
}
