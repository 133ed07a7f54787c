// Package engine runs the resolved rule set against a repository's file
// units and folds fired rules into a structured issue report.
//
// Rules whose facts are all repository-wide run once against the global
// sentinel; everything else runs per file. A failure inside one unit is
// contained to that unit: it contributes zero issues and the run continues.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/archetype-labs/archlint/internal/config"
	"github.com/archetype-labs/archlint/internal/exempt"
	"github.com/archetype-labs/archlint/internal/location"
	"github.com/archetype-labs/archlint/internal/scheduler"
	"github.com/archetype-labs/archlint/pkg/core"
	"github.com/archetype-labs/archlint/pkg/plugin"
)

// Engine evaluates rules. One Engine serves many runs.
type Engine struct {
	registry  *plugin.Registry
	locations *location.Resolver
	pool      *scheduler.Pool
	telemetry exempt.Emitter
	logger    *slog.Logger
	now       func() time.Time
}

// Config configures an Engine.
type Config struct {
	// Registry supplies facts and operators; nil uses the default registry.
	Registry *plugin.Registry
	// Pool offloads per-unit evaluation; nil evaluates inline.
	Pool *scheduler.Pool
	// Telemetry audits exemption usage; nil disables.
	Telemetry exempt.Emitter
	// Logger is optional; nil discards.
	Logger *slog.Logger
	// Now is the clock used for exemption expiry; nil uses time.Now.
	Now func() time.Time
}

// New builds an engine.
func New(cfg Config) *Engine {
	registry := cfg.Registry
	if registry == nil {
		registry = plugin.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		registry:  registry,
		locations: location.New(logger),
		pool:      cfg.Pool,
		telemetry: cfg.Telemetry,
		logger:    logger,
		now:       now,
	}
}

// Run evaluates the rule set once per file and once for the global sentinel,
// returning the aggregated report. It blocks on the plugin initialization
// barrier first; rule evaluation never sees a partially registered
// capability set.
func (e *Engine) Run(ctx context.Context, files []core.FileData, cfg *config.ExecutionConfig) (*core.Report, error) {
	if err := e.registry.Wait(ctx); err != nil {
		return nil, fmt.Errorf("plugin initialization: %w", err)
	}

	ev := newEvaluator(e.registry, cfg)
	store := exempt.NewStore(cfg.Options.RepoURL, cfg.Exemptions, e.logger, e.telemetry)
	report := core.NewReport(cfg.Archetype.Name)
	report.Repo = cfg.Options.RepoURL

	// Per-file units. Batches may complete out of submission order; the
	// report aggregates by summation, so ordering between files is free.
	type outcome struct {
		file   string
		issues []core.Issue
	}
	type pending struct {
		file   string
		future *scheduler.Future
	}
	futures := make([]pending, 0, len(files))
	inline := make([]outcome, 0, len(files))

	for _, f := range files {
		if f.IsGlobal() {
			continue
		}
		if e.pool == nil {
			inline = append(inline, outcome{file: f.Path, issues: e.evaluateUnit(ctx, ev, f, files, cfg, store)})
			continue
		}
		future, err := e.pool.Submit(scheduler.Task{
			ID:   f.Path,
			Kind: "evaluate",
			Fn: func(taskCtx context.Context) (any, error) {
				return e.evaluateUnit(taskCtx, ev, f, files, cfg, store), nil
			},
		})
		if err != nil {
			// Pool fully degraded: finish on the orchestrating goroutine.
			e.logger.Warn("worker pool unavailable, evaluating inline", "file", f.Path, "error", err)
			inline = append(inline, outcome{file: f.Path, issues: e.evaluateUnit(ctx, ev, f, files, cfg, store)})
			continue
		}
		futures = append(futures, pending{file: f.Path, future: future})
	}

	for _, o := range inline {
		report.Add(o.file, o.issues)
	}
	for _, p := range futures {
		value, err := p.future.Wait(ctx)
		if err != nil {
			// Timeouts and worker crashes reject single units, never the
			// run. The lost file is reported so its hash is not committed;
			// otherwise the cache would skip it until its content changes.
			e.logger.Error("unit evaluation lost", "file", p.file, "error", err)
			report.Lost = append(report.Lost, p.file)
			continue
		}
		if issues, ok := value.([]core.Issue); ok && len(issues) > 0 {
			report.Add(issues[0].File, issues)
		}
	}

	// The global sentinel runs exactly once, last, on the orchestrating
	// goroutine. Its issues attach to the sentinel identity only.
	sentinel := core.GlobalFileData()
	report.Add(core.GlobalFileName, e.evaluateUnit(ctx, ev, sentinel, files, cfg, store))

	e.logger.Info("analysis complete",
		"archetype", cfg.Archetype.Name,
		"files", len(files),
		"issues", report.Total(),
		"fatalities", report.Counts.Fatalities,
		"exempt", report.Counts.Exempt,
		"lost", len(report.Lost))
	return report, nil
}

// evaluateUnit runs every applicable rule against one unit. Any evaluation
// failure lands here: it is logged, optionally handed to an error action,
// and the unit yields zero issues rather than aborting the run.
func (e *Engine) evaluateUnit(ctx context.Context, ev *evaluator, unit core.FileData, files []core.FileData, cfg *config.ExecutionConfig, store *exempt.Store) []core.Issue {
	rules := ev.fileRules
	if unit.IsGlobal() {
		rules = ev.globalRule
	}
	if len(rules) == 0 {
		return nil
	}

	fc := &plugin.FactContext{
		File:     unit,
		Files:    files,
		RepoRoot: cfg.Options.RepoRoot,
		RepoURL:  cfg.Options.RepoURL,
		Options:  ev.options,
		Logger:   e.logger,
	}
	u := ev.unit(fc)

	var issues []core.Issue
	for _, rule := range rules {
		fired, err := u.evalCondition(ctx, rule.Conditions)
		if err != nil {
			if !e.recoverUnit(ctx, fc, rule, err) {
				e.logger.Error("unit evaluation failed",
					"archetype", cfg.Archetype.Name,
					"rule", rule.Name,
					"file", unit.Path,
					"error", err)
				return nil
			}
			continue
		}
		if !fired {
			continue
		}
		issues = append(issues, e.buildIssue(rule, unit, u, store))
	}
	return issues
}

// recoverUnit consults the rule's error action, if it names one. A
// recovering action suppresses the failure for this rule only.
func (e *Engine) recoverUnit(ctx context.Context, fc *plugin.FactContext, rule config.RuleConfig, cause error) bool {
	key, _ := rule.Event.Params.Details["onError"].(string)
	if key == "" {
		return false
	}
	action, ok := e.registry.ErrorAction(key)
	if !ok {
		e.logger.Warn("error action not registered", "action", key, "rule", rule.Name)
		return false
	}
	if _, err := action(ctx, fc, cause); err != nil {
		return false
	}
	e.logger.Warn("rule failure recovered by error action",
		"rule", rule.Name, "action", key, "cause", cause)
	return true
}

// buildIssue converts one fired rule into an issue: the event's severity
// and message, the fact-defined details payload, the resolved location,
// and the exemption verdict.
func (e *Engine) buildIssue(rule config.RuleConfig, unit core.FileData, u *unitEval, store *exempt.Store) core.Issue {
	details := make(map[string]any)
	for k, v := range rule.Event.Params.Details {
		details[k] = v
	}
	for _, factName := range rule.FactNames() {
		value, ok := u.values[factName]
		if !ok {
			continue
		}
		// Map-shaped fact values merge flat; anything else keys by fact
		// name. The shape stays fact-defined either way.
		if m, isMap := value.(map[string]any); isMap {
			for k, v := range m {
				if _, taken := details[k]; !taken {
					details[k] = v
				}
			}
		} else {
			details[factName] = value
		}
	}

	issue := core.Issue{
		Rule:     rule.Name,
		Severity: rule.Event.Severity(),
		Message:  rule.Event.Params.Message,
		File:     unit.Path,
		Details:  details,
		Snippet:  firstSnippet(details),
		Location: e.locations.Extract(rule.Name, details),
	}
	if ex, ok := store.Check(rule.Name, e.now()); ok {
		issue.Exempt = true
		issue.ExemptReason = ex.Reason
	}
	return issue
}

// firstSnippet pulls the first matched substring out of a pattern-scan
// payload, when one exists.
func firstSnippet(details map[string]any) string {
	matches, ok := details["matches"].(map[string]any)
	if !ok {
		return ""
	}
	for _, group := range matches {
		arr, ok := group.([]any)
		if !ok {
			continue
		}
		for _, entry := range arr {
			if m, ok := entry.(map[string]any); ok {
				if s, ok := m["match"].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}
