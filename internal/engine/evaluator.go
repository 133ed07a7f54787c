package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/archetype-labs/archlint/internal/config"
	"github.com/archetype-labs/archlint/pkg/plugin"
)

// evaluator holds the per-run evaluation state: the capability registry
// restricted to the archetype's enabled names, and the resolved rules split
// into per-file and repository-global sets.
type evaluator struct {
	registry   *plugin.Registry
	enabledF   map[string]bool
	enabledO   map[string]bool
	fileRules  []config.RuleConfig
	globalRule []config.RuleConfig
	options    map[string]any
}

func newEvaluator(registry *plugin.Registry, cfg *config.ExecutionConfig) *evaluator {
	ev := &evaluator{
		registry: registry,
		enabledF: nameSet(cfg.Archetype.Facts),
		enabledO: nameSet(cfg.Archetype.Operators),
		options:  archetypeOptions(cfg.Archetype),
	}
	for _, rule := range cfg.Rules {
		if ev.isGlobalRule(rule) {
			ev.globalRule = append(ev.globalRule, rule)
		} else {
			ev.fileRules = append(ev.fileRules, rule)
		}
	}
	return ev
}

// isGlobalRule reports whether every fact the rule references is
// repository-wide. Mixed rules run per file; their global facts see the
// full file set through the fact context either way.
func (ev *evaluator) isGlobalRule(rule config.RuleConfig) bool {
	names := rule.FactNames()
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		f, err := ev.registry.Fact(name)
		if err != nil || !plugin.IsGlobalFact(f) {
			return false
		}
	}
	return true
}

// unitEval evaluates rules against one unit, memoizing fact values so each
// fact runs at most once per unit.
type unitEval struct {
	ev     *evaluator
	fc     *plugin.FactContext
	values map[string]any
}

func (ev *evaluator) unit(fc *plugin.FactContext) *unitEval {
	return &unitEval{ev: ev, fc: fc, values: make(map[string]any)}
}

// fact resolves and memoizes one enabled fact's value for this unit.
func (u *unitEval) fact(ctx context.Context, name string) (any, error) {
	if v, ok := u.values[name]; ok {
		return v, nil
	}
	if !u.ev.enabledF[name] {
		return nil, fmt.Errorf("fact %q is not enabled for this archetype", name)
	}
	f, err := u.ev.registry.Fact(name)
	if err != nil {
		return nil, err
	}
	v, err := safeEvaluate(ctx, f, u.fc)
	if err != nil {
		return nil, fmt.Errorf("fact %s: %w", name, err)
	}
	u.values[name] = v
	return v, nil
}

// safeEvaluate runs a fact, converting a panic into an error so one broken
// plugin cannot abort the run.
func safeEvaluate(ctx context.Context, f plugin.Fact, fc *plugin.FactContext) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panicked: %v", rec)
		}
	}()
	return f.Evaluate(ctx, fc)
}

// safeApply runs an operator under the same panic containment as
// safeEvaluate; operators are plugin code too.
func safeApply(op plugin.Operator, value, comparison any) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panicked: %v", rec)
		}
	}()
	return op.Apply(value, comparison)
}

// evalCondition walks the condition tree: "all" groups are conjunctions,
// "any" groups disjunctions, leaves apply an operator to a fact value.
func (u *unitEval) evalCondition(ctx context.Context, c config.Condition) (bool, error) {
	switch {
	case len(c.All) > 0:
		for _, sub := range c.All {
			ok, err := u.evalCondition(ctx, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case len(c.Any) > 0:
		for _, sub := range c.Any {
			ok, err := u.evalCondition(ctx, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return u.evalLeaf(ctx, c)
	}
}

func (u *unitEval) evalLeaf(ctx context.Context, c config.Condition) (bool, error) {
	value, err := u.fact(ctx, c.Fact)
	if err != nil {
		return false, err
	}
	if c.Path != "" {
		value = lookupPath(value, c.Path)
	}

	if !u.ev.enabledO[c.Operator] {
		return false, fmt.Errorf("operator %q is not enabled for this archetype", c.Operator)
	}
	op, err := u.ev.registry.Operator(c.Operator)
	if err != nil {
		return false, err
	}
	ok, err := safeApply(op, value, c.Value)
	if err != nil {
		return false, fmt.Errorf("operator %s on fact %s: %w", c.Operator, c.Fact, err)
	}
	return ok, nil
}

// lookupPath selects a nested value by dotted path. A trailing "length"
// segment resolves to the size of a slice or string. Missing segments
// resolve to nil, which operators treat as absent.
func lookupPath(value any, path string) any {
	for _, segment := range strings.Split(path, ".") {
		switch v := value.(type) {
		case map[string]any:
			value = v[segment]
		case []any:
			if segment == "length" {
				return len(v)
			}
			return nil
		case string:
			if segment == "length" {
				return len(v)
			}
			return nil
		default:
			return nil
		}
	}
	return value
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// archetypeOptions flattens the archetype's config block into the options
// map facts receive.
func archetypeOptions(arch *config.ArchetypeConfig) map[string]any {
	opts := make(map[string]any, len(arch.Config.Extra)+4)
	for k, v := range arch.Config.Extra {
		opts[k] = v
	}
	if len(arch.Config.MinimumDependencyVersions) > 0 {
		opts["minimumDependencyVersions"] = arch.Config.MinimumDependencyVersions
	}
	if len(arch.Config.ExpectedDirectories) > 0 {
		opts["expectedDirectories"] = arch.Config.ExpectedDirectories
	}
	if len(arch.Config.BlacklistPatterns) > 0 {
		opts["blacklistPatterns"] = arch.Config.BlacklistPatterns
	}
	if len(arch.Config.WhitelistPatterns) > 0 {
		opts["whitelistPatterns"] = arch.Config.WhitelistPatterns
	}
	return opts
}
