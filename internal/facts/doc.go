// Package facts registers the built-in facts, operators, and error actions
// with the plugin registry. Import it for side effects:
//
//	import _ "github.com/archetype-labs/archlint/internal/facts"
//
// Per-file facts (fileMetadata, filePatterns, sourceComplexity) run once for
// every file unit; global facts (dependencyVersions, directoryStructure,
// repositoryInfo) run once against the repository sentinel.
package facts
