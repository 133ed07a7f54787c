package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-labs/archlint/internal/config"
	"github.com/archetype-labs/archlint/internal/exempt"
	"github.com/archetype-labs/archlint/internal/scheduler"
	"github.com/archetype-labs/archlint/internal/testutil"
	"github.com/archetype-labs/archlint/pkg/core"
	"github.com/archetype-labs/archlint/pkg/plugin"
)

var engineNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

// testRegistry registers a file-scoped fact counting "TODO" occurrences, a
// repository-scoped fact counting files, and the operators the test rules
// use.
func testRegistry() *plugin.Registry {
	r := plugin.NewRegistry()
	r.RegisterFact(plugin.FactFunc{
		FactName: "todoCount",
		Fn: func(_ context.Context, fc *plugin.FactContext) (any, error) {
			count := 0
			for i := 0; i+4 <= len(fc.File.Content); i++ {
				if fc.File.Content[i:i+4] == "TODO" {
					count++
				}
			}
			return map[string]any{"count": count}, nil
		},
	})
	r.RegisterFact(plugin.FactFunc{
		FactName: "fileCount",
		IsGlobal: true,
		Fn: func(_ context.Context, fc *plugin.FactContext) (any, error) {
			return map[string]any{"count": len(fc.Files)}, nil
		},
	})
	r.RegisterOperator(plugin.OperatorFunc{
		OpName: "largerThan",
		Fn: func(factValue, comparison any) (bool, error) {
			a, _ := factValue.(int)
			b, _ := comparison.(int)
			return a > b, nil
		},
	})
	return r
}

func leaf(fact, path, operator string, value any) config.Condition {
	return config.Condition{Fact: fact, Path: path, Operator: operator, Value: value}
}

func rule(name, severity, message string, conditions ...config.Condition) config.RuleConfig {
	return config.RuleConfig{
		Name:       name,
		Conditions: config.Condition{All: conditions},
		Event: config.Event{
			Type:   severity,
			Params: config.EventParams{Message: message},
		},
	}
}

func execConfig(rules ...config.RuleConfig) *config.ExecutionConfig {
	return &config.ExecutionConfig{
		Archetype: &config.ArchetypeConfig{
			Name:      "test",
			Rules:     ruleNames(rules),
			Facts:     []string{"todoCount", "fileCount"},
			Operators: []string{"largerThan"},
		},
		Rules:   rules,
		Options: config.InvocationOptions{RepoURL: "acme/svc"},
	}
}

func ruleNames(rules []config.RuleConfig) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}

func testFiles() []core.FileData {
	return []core.FileData{
		{Name: "a.js", Path: "src/a.js", Content: "TODO one\nTODO two"},
		{Name: "b.js", Path: "src/b.js", Content: "clean"},
		{Name: "c.js", Path: "src/c.js", Content: "TODO"},
	}
}

func newTestEngine(t *testing.T, registry *plugin.Registry) *Engine {
	t.Helper()
	return New(Config{
		Registry: registry,
		Logger:   testutil.NewTestLogger(t),
		Now:      func() time.Time { return engineNow },
	})
}

func TestEngineRunPerFileRules(t *testing.T) {
	eng := newTestEngine(t, testRegistry())
	cfg := execConfig(rule("no-todo", "warning", "unresolved TODO",
		leaf("todoCount", "count", "largerThan", 0)))

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Counts.Warnings)
	assert.Contains(t, report.Files, "src/a.js")
	assert.Contains(t, report.Files, "src/c.js")
	assert.NotContains(t, report.Files, "src/b.js")

	issue := report.Files["src/a.js"][0]
	assert.Equal(t, "no-todo", issue.Rule)
	assert.Equal(t, core.SeverityWarning, issue.Severity)
	assert.Equal(t, "unresolved TODO", issue.Message)
	assert.Equal(t, 2, issue.Details["count"], "fired fact values merge into details")
	assert.Equal(t, 1, issue.Location.StartLine, "unlocated issues carry the fallback")
	assert.False(t, issue.Location.Found)
}

func TestEngineGlobalRuleRunsOnce(t *testing.T) {
	eng := newTestEngine(t, testRegistry())
	cfg := execConfig(rule("too-many-files", "fatality", "repository too large",
		leaf("fileCount", "count", "largerThan", 1)))

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)

	require.Contains(t, report.Files, core.GlobalFileName)
	require.Len(t, report.Files[core.GlobalFileName], 1, "global rules run once, not per file")
	assert.Equal(t, 1, report.Counts.Fatalities)
	assert.Len(t, report.Files, 1)
}

func TestEngineMixedRuleRunsPerFile(t *testing.T) {
	eng := newTestEngine(t, testRegistry())
	// References a file fact and a global fact, so it evaluates per file.
	cfg := execConfig(rule("todo-in-large-repo", "info", "todo in a multi-file repo",
		leaf("todoCount", "count", "largerThan", 0),
		leaf("fileCount", "count", "largerThan", 1)))

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Counts.Infos)
	assert.NotContains(t, report.Files, core.GlobalFileName)
}

func TestEngineExemption(t *testing.T) {
	eng := newTestEngine(t, testRegistry())
	cfg := execConfig(rule("no-todo", "fatality", "unresolved TODO",
		leaf("todoCount", "count", "largerThan", 0)))
	cfg.Exemptions = []exempt.Exemption{{
		Repo:           "https://github.com/acme/svc.git",
		Rule:           "no-todo",
		ExpirationDate: exempt.Date{Time: engineNow.AddDate(0, 6, 0)},
		Reason:         "cleanup scheduled",
	}}

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Counts.Exempt)
	assert.Zero(t, report.Counts.Fatalities)
	assert.Equal(t, 0, report.ExitCode(), "exempt fatalities do not gate")
	issue := report.Files["src/a.js"][0]
	assert.True(t, issue.Exempt)
	assert.Equal(t, "cleanup scheduled", issue.ExemptReason)
}

func TestEngineExpiredExemptionStillFires(t *testing.T) {
	eng := newTestEngine(t, testRegistry())
	cfg := execConfig(rule("no-todo", "fatality", "unresolved TODO",
		leaf("todoCount", "count", "largerThan", 0)))
	cfg.Exemptions = []exempt.Exemption{{
		Repo:           "acme/svc",
		Rule:           "no-todo",
		ExpirationDate: exempt.Date{Time: engineNow.AddDate(0, -1, 0)},
	}}

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Counts.Fatalities)
	assert.Equal(t, 1, report.ExitCode())
}

func TestEngineFactFailureIsolatesUnit(t *testing.T) {
	registry := testRegistry()
	registry.RegisterFact(plugin.FactFunc{
		FactName: "brittle",
		Fn: func(_ context.Context, fc *plugin.FactContext) (any, error) {
			if fc.File.Path == "src/b.js" {
				return nil, errors.New("cannot read")
			}
			return map[string]any{"ok": 1}, nil
		},
	})

	eng := newTestEngine(t, registry)
	cfg := execConfig(rule("brittle-rule", "warning", "brittle fired",
		leaf("brittle", "ok", "largerThan", 0)))
	cfg.Archetype.Facts = append(cfg.Archetype.Facts, "brittle")

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err, "a failing unit never aborts the run")

	assert.NotContains(t, report.Files, "src/b.js")
	assert.Contains(t, report.Files, "src/a.js")
	assert.Contains(t, report.Files, "src/c.js")
}

func TestEnginePanickingFactIsolatesUnit(t *testing.T) {
	registry := testRegistry()
	registry.RegisterFact(plugin.FactFunc{
		FactName: "explosive",
		Fn: func(_ context.Context, fc *plugin.FactContext) (any, error) {
			if fc.File.Path == "src/a.js" {
				panic("bad payload")
			}
			return map[string]any{"ok": 1}, nil
		},
	})

	eng := newTestEngine(t, registry)
	cfg := execConfig(rule("explosive-rule", "warning", "fired",
		leaf("explosive", "ok", "largerThan", 0)))
	cfg.Archetype.Facts = append(cfg.Archetype.Facts, "explosive")

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)
	assert.NotContains(t, report.Files, "src/a.js")
	assert.Contains(t, report.Files, "src/b.js")
}

func TestEnginePanickingOperatorIsolatesUnit(t *testing.T) {
	registry := testRegistry()
	registry.RegisterOperator(plugin.OperatorFunc{
		OpName: "volatile",
		Fn: func(factValue, _ any) (bool, error) {
			if v, _ := factValue.(int); v > 1 {
				panic("plugin bug")
			}
			return true, nil
		},
	})

	eng := newTestEngine(t, registry)
	cfg := execConfig(rule("volatile-rule", "warning", "fired",
		leaf("todoCount", "count", "volatile", 0)))
	cfg.Archetype.Operators = append(cfg.Archetype.Operators, "volatile")

	var report *core.Report
	var err error
	require.NotPanics(t, func() {
		report, err = eng.Run(context.Background(), testFiles(), cfg)
	})
	require.NoError(t, err)

	// src/a.js trips the panic; only that unit is dropped.
	assert.NotContains(t, report.Files, "src/a.js")
	assert.Contains(t, report.Files, "src/b.js")
	assert.Contains(t, report.Files, "src/c.js")
	assert.Equal(t, 2, report.Counts.Warnings)
}

func TestEngineErrorActionRecovers(t *testing.T) {
	registry := testRegistry()
	registry.RegisterFact(plugin.FactFunc{
		FactName: "broken",
		Fn: func(_ context.Context, _ *plugin.FactContext) (any, error) {
			return nil, errors.New("always fails")
		},
	})
	registry.RegisterErrorAction("core:useDefault", func(_ context.Context, _ *plugin.FactContext, _ error) (any, error) {
		return nil, nil
	})

	brokenRule := rule("broken-rule", "warning", "never fires",
		leaf("broken", "", "largerThan", 0))
	brokenRule.Event.Params.Details = map[string]any{"onError": "core:useDefault"}
	todoRule := rule("no-todo", "warning", "unresolved TODO",
		leaf("todoCount", "count", "largerThan", 0))

	eng := newTestEngine(t, registry)
	cfg := execConfig(brokenRule, todoRule)
	cfg.Archetype.Facts = append(cfg.Archetype.Facts, "broken")

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)
	// The recovered rule is skipped; later rules on the same unit still run.
	assert.Equal(t, 2, report.Counts.Warnings)
}

func TestEngineDisabledFactRejected(t *testing.T) {
	eng := newTestEngine(t, testRegistry())
	cfg := execConfig(rule("uses-disabled", "warning", "m",
		leaf("todoCount", "count", "largerThan", 0)))
	cfg.Archetype.Facts = []string{"fileCount"} // todoCount not enabled

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)
	assert.Zero(t, report.Total(), "rules over disabled facts yield nothing")
}

func TestEngineInitBarrierFailureAborts(t *testing.T) {
	registry := testRegistry()
	registry.Go("bad-plugin", func(_ context.Context, _ *plugin.Registry) error {
		return errors.New("init failed")
	})

	eng := newTestEngine(t, registry)
	cfg := execConfig(rule("r", "warning", "m", leaf("todoCount", "count", "largerThan", 0)))

	_, err := eng.Run(context.Background(), testFiles(), cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "plugin initialization")
}

func TestEngineWithPool(t *testing.T) {
	pool := scheduler.NewPool(2, testutil.NewTestLogger(t))
	defer pool.Close()

	registry := testRegistry()
	eng := New(Config{
		Registry: registry,
		Pool:     pool,
		Logger:   testutil.NewTestLogger(t),
		Now:      func() time.Time { return engineNow },
	})
	cfg := execConfig(rule("no-todo", "warning", "unresolved TODO",
		leaf("todoCount", "count", "largerThan", 0)))

	report, err := eng.Run(context.Background(), testFiles(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Counts.Warnings, "pooled and inline evaluation agree")
}

func TestEngineLostUnitsReported(t *testing.T) {
	release := make(chan struct{})
	registry := testRegistry()
	registry.RegisterFact(plugin.FactFunc{
		FactName: "stuck",
		Fn: func(_ context.Context, fc *plugin.FactContext) (any, error) {
			if fc.File.Path == "src/a.js" {
				<-release
			}
			return map[string]any{"ok": 1}, nil
		},
	})

	pool := scheduler.NewPool(3, testutil.NewTestLogger(t))
	defer pool.Close()
	defer close(release) // frees the hung worker before Close drains

	eng := New(Config{
		Registry: registry,
		Pool:     pool,
		Logger:   testutil.NewTestLogger(t),
		Now:      func() time.Time { return engineNow },
	})
	cfg := execConfig(rule("stuck-rule", "warning", "fired",
		leaf("stuck", "ok", "largerThan", 0)))
	cfg.Archetype.Facts = append(cfg.Archetype.Facts, "stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	report, err := eng.Run(ctx, testFiles(), cfg)
	require.NoError(t, err, "a lost unit never aborts the run")

	assert.Equal(t, []string{"src/a.js"}, report.Lost,
		"the lost file is reported so its hash is not committed")
	assert.NotContains(t, report.Files, "src/a.js")
	assert.Contains(t, report.Files, "src/b.js")
	assert.Contains(t, report.Files, "src/c.js")
}

func TestLookupPath(t *testing.T) {
	value := map[string]any{
		"metrics": map[string]any{"count": 3},
		"items":   []any{"a", "b"},
		"name":    "hello",
	}

	assert.Equal(t, 3, lookupPath(value, "metrics.count"))
	assert.Equal(t, 2, lookupPath(value, "items.length"))
	assert.Equal(t, 5, lookupPath(value, "name.length"))
	assert.Nil(t, lookupPath(value, "missing.deep"))
	assert.Nil(t, lookupPath(value, "items.0"))
}
