// Package config resolves archetype configurations and their rules.
// Resolution priority is remote server, then local files, then the
// built-in table; resolved configurations are cached per archetype name
// for the lifetime of the process.
package config

import (
	"github.com/archetype-labs/archlint/internal/exempt"
	"github.com/archetype-labs/archlint/pkg/core"
)

// ArchetypeOptions is the config block of an archetype: structural and
// version constraints plus path filtering patterns.
type ArchetypeOptions struct {
	// MinimumDependencyVersions maps dependency name to the lowest
	// acceptable version, e.g. {"react": "18.0.0"}.
	MinimumDependencyVersions map[string]string `json:"minimumDependencyVersions" mapstructure:"minimumDependencyVersions"`
	// ExpectedDirectories lists directories the repository should contain.
	ExpectedDirectories []string `json:"expectedDirectories" mapstructure:"expectedDirectories"`
	// BlacklistPatterns are glob patterns for paths excluded from analysis.
	BlacklistPatterns []string `json:"blacklistPatterns" mapstructure:"blacklistPatterns"`
	// WhitelistPatterns are glob patterns for paths included in analysis.
	// Empty means everything not blacklisted.
	WhitelistPatterns []string `json:"whitelistPatterns" mapstructure:"whitelistPatterns"`
	// Extra holds any additional keys the archetype carries; facts receive
	// these verbatim.
	Extra map[string]any `json:"-" mapstructure:",remain"`
}

// ArchetypeConfig is a named project profile. Immutable once resolved.
type ArchetypeConfig struct {
	Name      string           `json:"name" mapstructure:"name"`
	Rules     []string         `json:"rules" mapstructure:"rules"`
	Facts     []string         `json:"facts" mapstructure:"facts"`
	Operators []string         `json:"operators" mapstructure:"operators"`
	Config    ArchetypeOptions `json:"config" mapstructure:"config"`
}

// =============================================================================
// Rules
// =============================================================================

// Condition is one node of a rule's condition tree. Exactly one of the
// group fields (All, Any) or the leaf fields (Fact and Operator) is used.
type Condition struct {
	All []Condition `json:"all,omitempty" mapstructure:"all"`
	Any []Condition `json:"any,omitempty" mapstructure:"any"`

	// Leaf clause: compare a fact's value against Value using Operator.
	Fact string `json:"fact,omitempty" mapstructure:"fact"`
	// Path optionally selects a nested field of the fact value,
	// dotted, e.g. "metrics.lineCount".
	Path     string `json:"path,omitempty" mapstructure:"path"`
	Operator string `json:"operator,omitempty" mapstructure:"operator"`
	Value    any    `json:"value,omitempty" mapstructure:"value"`
}

// IsGroup reports whether the node is an all/any group rather than a leaf.
func (c Condition) IsGroup() bool {
	return len(c.All) > 0 || len(c.Any) > 0
}

// EventParams is the payload attached to a fired rule's event.
type EventParams struct {
	Message string         `json:"message" mapstructure:"message"`
	Details map[string]any `json:"details,omitempty" mapstructure:"details"`
}

// Event describes what a rule emits when its condition holds. Type is the
// severity name: "fatality", "error", "warning", "info" or "hint".
type Event struct {
	Type   string      `json:"type" mapstructure:"type"`
	Params EventParams `json:"params" mapstructure:"params"`
}

// Severity resolves the event type to a core severity. Unknown types map
// to warning, matching core.ParseSeverity.
func (e Event) Severity() core.Severity {
	sev, _ := core.ParseSeverity(e.Type)
	return sev
}

// RuleConfig is one declarative rule: a condition tree over facts plus the
// event emitted when it fires.
type RuleConfig struct {
	Name        string    `json:"name" mapstructure:"name"`
	Description string    `json:"description,omitempty" mapstructure:"description"`
	Conditions  Condition `json:"conditions" mapstructure:"conditions"`
	Event       Event     `json:"event" mapstructure:"event"`
}

// FactNames returns every fact referenced anywhere in the condition tree.
func (r RuleConfig) FactNames() []string {
	seen := make(map[string]bool)
	var walk func(c Condition)
	walk = func(c Condition) {
		if c.Fact != "" {
			seen[c.Fact] = true
		}
		for _, sub := range c.All {
			walk(sub)
		}
		for _, sub := range c.Any {
			walk(sub)
		}
	}
	walk(r.Conditions)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

// =============================================================================
// Execution configuration
// =============================================================================

// InvocationOptions echoes how the engine was invoked. Carried on the
// ExecutionConfig so downstream consumers (renderers, telemetry) can report
// the run's provenance without re-reading flags.
type InvocationOptions struct {
	Server    string `json:"server,omitempty"`
	LocalPath string `json:"localPath,omitempty"`
	RepoURL   string `json:"repoUrl,omitempty"`
	RepoRoot  string `json:"repoRoot,omitempty"`
}

// ExecutionConfig is the fully resolved configuration for one
// (archetype, invocation): the archetype, its loaded rules, the exemption
// list, and the invocation echo. Never mutated after construction.
type ExecutionConfig struct {
	Archetype  *ArchetypeConfig
	Rules      []RuleConfig
	Exemptions []exempt.Exemption
	Options    InvocationOptions
}
