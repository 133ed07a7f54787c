package commands

import (
	"github.com/spf13/cobra"

	"github.com/archetype-labs/archlint/internal/config"
	"github.com/archetype-labs/archlint/pkg/core"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the rules of the configured archetype",
		Long: `List every rule the configured archetype resolves to, after applying
the same remote, local, built-in source chain the check command uses.`,
		Example: `  # Rules for the configured archetype
  archlint rules

  # Rules for a specific archetype, as JSON
  archlint rules -a java-maven --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			exec, err := cmdCtx.NewResolver().Resolve(cmd.Context(), cmdCtx.Project.Archetype)
			if err != nil {
				return err
			}

			infos := make([]core.RuleInfo, 0, len(exec.Rules))
			for _, rule := range exec.Rules {
				infos = append(infos, ruleInfo(exec.Archetype.Name, rule))
			}
			return cmdCtx.Renderer.Rules(infos)
		},
	}
}

func ruleInfo(archetype string, rule config.RuleConfig) core.RuleInfo {
	return core.RuleInfo{
		Name:      rule.Name,
		Archetype: archetype,
		Severity:  rule.Event.Severity(),
		Message:   rule.Event.Params.Message,
		Facts:     rule.FactNames(),
	}
}
