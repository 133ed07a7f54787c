// Package cli provides the command-line interface for archlint.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/archetype-labs/archlint/internal/cli/commands"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "archlint",
		Short: "archlint - archetype-driven repository analysis",
		Long: `archlint analyzes a repository against the rule set of its archetype.

An archetype describes what a healthy repository of a given kind looks
like: expected directories, dependency version floors, and content
patterns. Rules are declarative conditions over facts computed from the
repository; violations are reported with source locations and can be
suppressed by time-limited exemptions.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("archetype", "a", "", "Archetype to analyze against")
	flags.String("server", "", "Remote configuration server URL")
	flags.String("local-path", "", "Local configuration directory")
	flags.String("repo-url", "", "Repository URL for exemption matching")
	flags.StringP("format", "f", "", "Output format: text, json")
	flags.String("min-severity", "", "Minimum severity to display: fatality, error, warning, info, hint")
	flags.StringSlice("disable", nil, "Rule names to skip")
	flags.Int("workers", 0, "Analysis worker count")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewCheckCommand(),
		commands.NewRulesCommand(),
		commands.NewArchetypesCommand(),
		commands.NewServeCommand(),
		commands.NewVersionCommand(Version, BuildDate, GitCommit),
	)

	return rootCmd
}

// Execute runs the root command and returns a process exit code. The
// command context ends on SIGINT/SIGTERM so serve and watch shut down
// cleanly.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr *commands.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}
