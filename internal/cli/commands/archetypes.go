package commands

import (
	"github.com/spf13/cobra"

	"github.com/archetype-labs/archlint/internal/config"
)

// NewArchetypesCommand creates the archetypes command.
func NewArchetypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "archetypes",
		Short: "List the built-in archetypes",
		Long: `List the archetypes shipped with the binary. A remote server or local
configuration directory may define additional ones; those are only known
by name at resolve time and are not listed here.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return cmdCtx.Renderer.Archetypes(config.BuiltinArchetypeNames())
		},
	}
}
