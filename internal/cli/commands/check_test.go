package commands

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-labs/archlint/internal/config"
	"github.com/archetype-labs/archlint/internal/scheduler"
	"github.com/archetype-labs/archlint/pkg/core"
)

func execConfigWith(rules ...config.RuleConfig) *config.ExecutionConfig {
	return &config.ExecutionConfig{Rules: rules}
}

func namedRule(name, severity string) config.RuleConfig {
	return config.RuleConfig{Name: name, Event: config.Event{Type: severity}}
}

func TestApplyRuleOverridesNoop(t *testing.T) {
	exec := execConfigWith(namedRule("no-console", "warning"))
	out := applyRuleOverrides(exec, &config.Project{}, slog.New(slog.DiscardHandler))
	assert.Same(t, exec, out, "no overrides means no copy")
}

func TestApplyRuleOverridesDisables(t *testing.T) {
	exec := execConfigWith(namedRule("no-console", "warning"), namedRule("max-complexity", "error"))
	proj := &config.Project{DisabledRules: []string{"no-console"}}

	out := applyRuleOverrides(exec, proj, slog.New(slog.DiscardHandler))
	require.Len(t, out.Rules, 1)
	assert.Equal(t, "max-complexity", out.Rules[0].Name)
	assert.Len(t, exec.Rules, 2, "original config is untouched")
}

func TestApplyRuleOverridesSeverity(t *testing.T) {
	exec := execConfigWith(namedRule("max-complexity", "warning"))
	proj := &config.Project{SeverityOverrides: map[string]string{"max-complexity": "fatality"}}

	out := applyRuleOverrides(exec, proj, slog.New(slog.DiscardHandler))
	require.Len(t, out.Rules, 1)
	assert.Equal(t, core.SeverityFatality, out.Rules[0].Event.Severity())
	assert.Equal(t, "warning", exec.Rules[0].Event.Type, "original rule keeps its severity")
}

func TestPruneLostDropsUncommittableHashes(t *testing.T) {
	plan := &scheduler.Plan{Hashes: map[string]string{
		"src/a.js": "h1",
		"src/b.js": "h2",
	}}
	report := core.NewReport("test")
	report.Lost = []string{"src/a.js"}

	pruneLost(plan, report)

	// The lost file must not become a cache hit; its findings would stay
	// suppressed until the content changes.
	assert.Equal(t, map[string]string{"src/b.js": "h2"}, plan.Hashes)
}

func TestApplyRuleOverridesUnknownSeverityIgnored(t *testing.T) {
	exec := execConfigWith(namedRule("max-complexity", "warning"))
	proj := &config.Project{SeverityOverrides: map[string]string{"max-complexity": "catastrophic"}}

	out := applyRuleOverrides(exec, proj, slog.New(slog.DiscardHandler))
	require.Len(t, out.Rules, 1)
	assert.Equal(t, "warning", out.Rules[0].Event.Type)
}
