package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ProjectFileName is the tool's own config file.
const ProjectFileName = "archlint.yaml"

// ProjectFileNameAlt is the alternate name of the config file.
const ProjectFileNameAlt = "archlint.yml"

// envPrefix maps ARCHLINT_SERVER to "server" and so on.
const envPrefix = "ARCHLINT_"

// Project holds the tool's invocation configuration, merged from defaults,
// archlint.yaml, environment, and flags, in increasing priority.
type Project struct {
	Archetype string `koanf:"archetype"`
	Server    string `koanf:"server"`
	LocalPath string `koanf:"local_path"`
	RepoURL   string `koanf:"repo_url"`
	Format    string `koanf:"format"`
	// MinSeverity filters the rendered report; issues below it are kept in
	// the counts but not printed.
	MinSeverity string `koanf:"min_severity"`
	// DisabledRules are skipped during evaluation.
	DisabledRules []string `koanf:"disabled_rules"`
	// SeverityOverrides remaps rule severities by rule name. Unknown
	// severity names are ignored.
	SeverityOverrides map[string]string `koanf:"severity_overrides"`
	Workers           int               `koanf:"workers"`
}

func projectDefaults() map[string]any {
	return map[string]any{
		"archetype":    "node-fullstack",
		"format":       "text",
		"min_severity": "hint",
		"workers":      4,
	}
}

// LoadProject merges the project configuration for a repository root.
// Flags may be nil.
func LoadProject(root string, flags *pflag.FlagSet) (*Project, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(projectDefaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findProjectFile(root); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		// Flag names are dashed; config keys are underscored.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "disable" {
				key = "disabled_rules"
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var p Project
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("unmarshaling project config: %w", err)
	}
	return &p, nil
}

// IsRuleDisabled reports whether a rule is disabled by project config.
func (p *Project) IsRuleDisabled(name string) bool {
	for _, r := range p.DisabledRules {
		if r == name {
			return true
		}
	}
	return false
}

func findProjectFile(root string) string {
	for _, name := range []string{ProjectFileName, ProjectFileNameAlt} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
