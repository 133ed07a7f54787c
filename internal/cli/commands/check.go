package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/archetype-labs/archlint/internal/config"
	"github.com/archetype-labs/archlint/internal/engine"
	_ "github.com/archetype-labs/archlint/internal/facts" // register built-in facts and operators
	"github.com/archetype-labs/archlint/internal/scheduler"
	"github.com/archetype-labs/archlint/internal/state"
	"github.com/archetype-labs/archlint/internal/telemetry"
	"github.com/archetype-labs/archlint/internal/walker"
	"github.com/archetype-labs/archlint/pkg/core"
)

const stateFile = ".archlint/state.db"

// watchInterval is how often watch mode polls for recent edits.
const watchInterval = 2 * time.Second

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Path    string // Repository root override
	NoCache bool   // Skip the content-hash cache
	Watch   bool   // Re-run on file changes
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Analyze a repository against its archetype",
		Long: `Analyze a repository against the rule set of its archetype.

Files unchanged since the previous run are skipped via a content-hash
cache stored under .archlint/. Exit code is 1 when any fatality-level
issue is found, 0 otherwise.`,
		Example: `  # Analyze the current repository
  archlint check

  # Analyze a specific path with an explicit archetype
  archlint check ./services/api -a go-service

  # Machine-readable output
  archlint check --format json

  # Force a full re-analysis
  archlint check --no-cache

  # Re-run on edits
  archlint check --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Path = args[0]
			}
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Ignore the content-hash cache")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Keep running and re-analyze when files change")

	return cmd
}

// checkRun carries everything one analysis pass needs. The store, hasher,
// and scheduler are shared across passes so watch mode keeps a warm cache.
type checkRun struct {
	ctx     *CommandContext
	opts    *CheckOptions
	tel     *telemetry.Client
	exec    *config.ExecutionConfig
	store   *state.Store
	hasher  *scheduler.Hasher
	sched   *scheduler.Scheduler
	watcher *scheduler.Watcher
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	ctx := cmd.Context()

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if opts.Path != "" {
		cmdCtx.RepoRoot, err = filepath.Abs(opts.Path)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
	}
	proj := cmdCtx.Project

	tel := telemetry.New(proj.Server, cmdCtx.Logger)
	defer tel.Flush(ctx)

	resolver := cmdCtx.NewResolver()
	exec, err := resolver.Resolve(ctx, proj.Archetype)
	if err != nil {
		return err
	}
	exec = applyRuleOverrides(exec, proj, cmdCtx.Logger)

	run := &checkRun{ctx: cmdCtx, opts: opts, tel: tel, exec: exec}

	// Open the content-hash store; analysis still works without it, the
	// cache just never skips.
	store := state.New()
	statePath := filepath.Join(cmdCtx.RepoRoot, stateFile)
	_ = os.MkdirAll(filepath.Dir(statePath), 0o755)
	if err := store.Open(statePath); err != nil {
		cmdCtx.Logger.Warn("state store unavailable, cache disabled", "path", statePath, "error", err)
	} else {
		defer func() { _ = store.Close() }()
		if err := store.InitSchema(); err != nil {
			return fmt.Errorf("initializing state store: %w", err)
		}
		run.store = store
	}

	if opts.Watch {
		watcher, err := scheduler.NewWatcher(cmdCtx.RepoRoot, cmdCtx.Logger)
		if err != nil {
			return fmt.Errorf("watching repository: %w", err)
		}
		defer watcher.Close()
		run.watcher = watcher
	}

	run.hasher = scheduler.NewHasher(run.store, cmdCtx.Logger)
	run.sched = scheduler.New(run.hasher, run.watcher, cmdCtx.Logger)

	if !opts.Watch {
		return run.once(ctx)
	}
	return run.watch(ctx)
}

// watch analyzes once, then re-analyzes whenever files change. Exit codes
// do not apply; the loop ends with the context.
func (r *checkRun) watch(ctx context.Context) error {
	go r.watcher.KeepWarm(ctx, r.hasher, watchInterval)

	if err := r.once(ctx); err != nil {
		if _, fatal := isExit(err); !fatal {
			return err
		}
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	lastRun := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !r.watcher.LastEdit().After(lastRun) {
				continue
			}
			lastRun = time.Now()
			if err := r.once(ctx); err != nil {
				if _, fatal := isExit(err); !fatal {
					return err
				}
			}
		}
	}
}

// once runs a single analysis pass: walk, plan, evaluate, render.
func (r *checkRun) once(ctx context.Context) error {
	logger := r.ctx.Logger
	proj := r.ctx.Project

	// Collect candidate files under the archetype's path filters.
	w := &walker.Walker{
		Root:      r.ctx.RepoRoot,
		Blacklist: r.exec.Archetype.Config.BlacklistPatterns,
		Whitelist: r.exec.Archetype.Config.WhitelistPatterns,
		Logger:    logger,
	}
	files, err := w.Walk()
	if err != nil {
		return fmt.Errorf("walking repository: %w", err)
	}

	// Plan the run against the content-hash cache.
	plan, err := r.sched.Plan(ctx, files)
	if err != nil {
		return fmt.Errorf("planning analysis: %w", err)
	}
	toAnalyze := plan.Files()
	if r.opts.NoCache {
		toAnalyze = files
		plan.CacheHits = nil
	}

	var runID string
	if r.store != nil {
		if runID, err = r.store.StartRun(proj.Archetype); err != nil {
			logger.Warn("recording run start failed", "error", err)
		}
	}

	// Evaluate.
	pool := scheduler.NewPool(proj.Workers, logger)
	defer pool.Close()

	eng := engine.New(engine.Config{
		Pool:      pool,
		Telemetry: r.tel,
		Logger:    logger,
	})
	report, err := eng.Run(ctx, toAnalyze, r.exec)
	if err != nil {
		return err
	}
	report.CacheHits = plan.CacheHits

	pruneLost(plan, report)
	r.sched.Commit(plan)
	r.tel.Emit("analysis.completed", map[string]any{
		"archetype": proj.Archetype,
		"files":     len(toAnalyze),
		"cacheHits": len(plan.CacheHits),
		"issues":    report.Total(),
	})
	if r.store != nil && runID != "" {
		if err := r.store.CompleteRun(runID, len(toAnalyze), len(plan.CacheHits), report.Total()); err != nil {
			logger.Warn("recording run completion failed", "error", err)
		}
	}

	if err := r.ctx.Renderer.Report(report, r.ctx.MinSeverity()); err != nil {
		return err
	}
	if code := report.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// pruneLost drops the hash of any file whose evaluation was lost, so the
// next run re-analyzes it instead of treating it as a cache hit.
func pruneLost(plan *scheduler.Plan, report *core.Report) {
	for _, path := range report.Lost {
		delete(plan.Hashes, path)
	}
}

// applyRuleOverrides returns a copy of the execution config with disabled
// rules removed and per-rule severity overrides applied. The cached
// original is left untouched.
func applyRuleOverrides(exec *config.ExecutionConfig, proj *config.Project, logger *slog.Logger) *config.ExecutionConfig {
	if len(proj.DisabledRules) == 0 && len(proj.SeverityOverrides) == 0 {
		return exec
	}
	kept := make([]config.RuleConfig, 0, len(exec.Rules))
	for _, rule := range exec.Rules {
		if proj.IsRuleDisabled(rule.Name) {
			continue
		}
		if override, ok := proj.SeverityOverrides[rule.Name]; ok {
			if _, valid := core.ParseSeverity(override); valid {
				rule.Event.Type = override
			} else {
				logger.Warn("ignoring unknown severity override", "rule", rule.Name, "severity", override)
			}
		}
		kept = append(kept, rule)
	}
	out := *exec
	out.Rules = kept
	return &out
}
