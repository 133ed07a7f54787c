// Command archlint analyzes repositories against archetype rule sets.
package main

import (
	"os"

	"github.com/archetype-labs/archlint/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
