// Package commands implements the archlint subcommands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/archetype-labs/archlint/internal/cli/output"
	"github.com/archetype-labs/archlint/internal/config"
	"github.com/archetype-labs/archlint/pkg/core"
)

// ExitError carries a process exit code through cobra's error path
// without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

// isExit reports whether err is an ExitError and extracts its code.
func isExit(err error) (int, bool) {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code, true
	}
	return 0, false
}

// CommandContext holds everything a command needs after setup.
type CommandContext struct {
	Project  *config.Project
	Logger   *slog.Logger
	Renderer *output.Renderer
	RepoRoot string
}

// NewCommandContext loads project configuration for the working directory
// and wires the logger and renderer from it plus the command's flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	proj, err := config.LoadProject(root, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))

	return &CommandContext{
		Project:  proj,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), output.Mode(proj.Format)),
		RepoRoot: root,
	}, nil
}

// MinSeverity parses the configured display threshold, defaulting to
// hint so everything shows.
func (c *CommandContext) MinSeverity() core.Severity {
	if sev, ok := core.ParseSeverity(c.Project.MinSeverity); ok {
		return sev
	}
	return core.SeverityHint
}

// NewResolver builds a configuration resolver from the project settings.
func (c *CommandContext) NewResolver() *config.Resolver {
	return config.NewResolver(config.ResolverConfig{
		Server:    c.Project.Server,
		LocalPath: c.Project.LocalPath,
		Options: config.InvocationOptions{
			Server:    c.Project.Server,
			LocalPath: c.Project.LocalPath,
			RepoURL:   c.Project.RepoURL,
			RepoRoot:  c.RepoRoot,
		},
		Logger: c.Logger,
	})
}
