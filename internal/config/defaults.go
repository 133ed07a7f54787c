package config

import "sort"

// Built-in archetypes and rules, used when neither a remote server nor a
// usable local file provides them. Fact and operator names refer to the
// built-in capability set registered by internal/facts.

func builtinArchetype(name string) (*ArchetypeConfig, bool) {
	cfg, ok := builtinArchetypes[name]
	if !ok {
		return nil, false
	}
	// Copy so cached configs never alias the table.
	out := cfg
	return &out, true
}

// BuiltinArchetypeNames lists the archetypes shipped with the binary,
// sorted for stable output.
func BuiltinArchetypeNames() []string {
	names := make([]string, 0, len(builtinArchetypes))
	for name := range builtinArchetypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func builtinRule(archetype, rule string) (RuleConfig, bool) {
	rules, ok := builtinRules[archetype]
	if !ok {
		return RuleConfig{}, false
	}
	r, ok := rules[rule]
	return r, ok
}

var defaultFacts = []string{
	"fileMetadata",
	"filePatterns",
	"sourceComplexity",
	"dependencyVersions",
	"directoryStructure",
	"repositoryInfo",
}

var defaultOperators = []string{
	"equal", "notEqual",
	"largerThan", "smallerThan",
	"contains", "notContains",
	"matches", "olderThan",
	"exists", "notExists",
}

var builtinArchetypes = map[string]ArchetypeConfig{
	"node-fullstack": {
		Name: "node-fullstack",
		Rules: []string{
			"outdated-dependencies",
			"missing-directories",
			"console-statements",
			"high-complexity",
		},
		Facts:     defaultFacts,
		Operators: defaultOperators,
		Config: ArchetypeOptions{
			MinimumDependencyVersions: map[string]string{
				"react":   "18.0.0",
				"express": "4.18.0",
			},
			ExpectedDirectories: []string{"src", "test"},
			BlacklistPatterns:   []string{"node_modules/**", "dist/**", "build/**", "coverage/**"},
			WhitelistPatterns:   []string{"**/*.js", "**/*.jsx", "**/*.ts", "**/*.tsx", "**/*.json"},
			Extra: map[string]any{
				"patterns": map[string]any{
					"consoleStatement": `console\.(log|warn|error|debug)\(`,
					"todoComment":      `(?i)//\s*(todo|fixme)`,
				},
				"complexityThreshold": 10,
			},
		},
	},
	"go-service": {
		Name: "go-service",
		Rules: []string{
			"outdated-dependencies",
			"missing-directories",
			"todo-comments",
		},
		Facts:     defaultFacts,
		Operators: defaultOperators,
		Config: ArchetypeOptions{
			MinimumDependencyVersions: map[string]string{},
			ExpectedDirectories:       []string{"cmd", "internal"},
			BlacklistPatterns:         []string{"vendor/**", "testdata/**"},
			WhitelistPatterns:         []string{"**/*.go", "**/go.mod"},
			Extra: map[string]any{
				"patterns": map[string]any{
					"todoComment": `(?i)//\s*(todo|fixme)`,
				},
			},
		},
	},
	"java-maven": {
		Name: "java-maven",
		Rules: []string{
			"missing-directories",
			"printstacktrace",
		},
		Facts:     defaultFacts,
		Operators: defaultOperators,
		Config: ArchetypeOptions{
			MinimumDependencyVersions: map[string]string{},
			ExpectedDirectories:       []string{"src/main/java", "src/test/java"},
			BlacklistPatterns:         []string{"target/**"},
			WhitelistPatterns:         []string{"**/*.java", "**/pom.xml"},
			Extra: map[string]any{
				"patterns": map[string]any{
					"printStackTrace": `\.printStackTrace\(\)`,
				},
			},
		},
	},
}

var builtinRules = map[string]map[string]RuleConfig{
	"node-fullstack": {
		"outdated-dependencies": ruleOutdatedDependencies,
		"missing-directories":   ruleMissingDirectories,
		"console-statements": {
			Name:        "console-statements",
			Description: "Console statements should not reach production code.",
			Conditions: Condition{All: []Condition{{
				Fact:     "filePatterns",
				Path:     "counts.consoleStatement",
				Operator: "largerThan",
				Value:    0,
			}}},
			Event: Event{
				Type:   "warning",
				Params: EventParams{Message: "console statement found; use the project logger instead"},
			},
		},
		"high-complexity": {
			Name:        "high-complexity",
			Description: "Functions above the complexity threshold are hard to maintain.",
			Conditions: Condition{All: []Condition{{
				Fact:     "sourceComplexity",
				Path:     "maxComplexity",
				Operator: "largerThan",
				Value:    10,
			}}},
			Event: Event{
				Type:   "error",
				Params: EventParams{Message: "function exceeds the cyclomatic complexity threshold"},
			},
		},
	},
	"go-service": {
		"outdated-dependencies": ruleOutdatedDependencies,
		"missing-directories":   ruleMissingDirectories,
		"todo-comments": {
			Name:        "todo-comments",
			Description: "TODO/FIXME comments should be tracked in the issue tracker.",
			Conditions: Condition{All: []Condition{{
				Fact:     "filePatterns",
				Path:     "counts.todoComment",
				Operator: "largerThan",
				Value:    0,
			}}},
			Event: Event{
				Type:   "info",
				Params: EventParams{Message: "TODO comment found; file an issue instead"},
			},
		},
	},
	"java-maven": {
		"missing-directories": ruleMissingDirectories,
		"printstacktrace": {
			Name:        "printstacktrace",
			Description: "printStackTrace loses errors; use the logging framework.",
			Conditions: Condition{All: []Condition{{
				Fact:     "filePatterns",
				Path:     "counts.printStackTrace",
				Operator: "largerThan",
				Value:    0,
			}}},
			Event: Event{
				Type:   "warning",
				Params: EventParams{Message: "printStackTrace call found; use the logging framework"},
			},
		},
	},
}

// Rules shared by several archetypes.

var ruleOutdatedDependencies = RuleConfig{
	Name:        "outdated-dependencies",
	Description: "Dependencies must satisfy the archetype's minimum versions.",
	Conditions: Condition{All: []Condition{{
		Fact:     "dependencyVersions",
		Path:     "violationCount",
		Operator: "largerThan",
		Value:    0,
	}}},
	Event: Event{
		Type:   "fatality",
		Params: EventParams{Message: "dependency below the minimum required version"},
	},
}

var ruleMissingDirectories = RuleConfig{
	Name:        "missing-directories",
	Description: "The repository should follow the archetype's directory layout.",
	Conditions: Condition{All: []Condition{{
		Fact:     "directoryStructure",
		Path:     "missingCount",
		Operator: "largerThan",
		Value:    0,
	}}},
	Event: Event{
		Type:   "warning",
		Params: EventParams{Message: "expected directory missing from repository"},
	},
}
