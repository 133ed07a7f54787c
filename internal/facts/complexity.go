package facts

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/archetype-labs/archlint/pkg/plugin"
)

func init() {
	plugin.RegisterFact(plugin.FactFunc{FactName: "sourceComplexity", Fn: sourceComplexity})
}

// Function declaration patterns per extension family. This is a lexical
// approximation, not a parse; it is deliberately cheap because it runs on
// every changed file and its output only needs to rank and locate.
var funcDecls = map[string]*regexp.Regexp{
	"go":   regexp.MustCompile(`^\s*func\s+(\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`),
	"js":   regexp.MustCompile(`(?:^|\s)(?:function\s+([A-Za-z_$][\w$]*)|(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?(?:function\b|\([^)]*\)\s*=>))`),
	"java": regexp.MustCompile(`^\s*(?:public|private|protected|static|final|\s)+[\w<>\[\]]+\s+([A-Za-z_][\w]*)\s*\([^)]*\)\s*\{`),
}

var branchKeywords = regexp.MustCompile(`\b(if|for|while|case|catch|&&|\|\|)\b|&&|\|\|`)

func declPattern(ext string) *regexp.Regexp {
	switch ext {
	case "go":
		return funcDecls["go"]
	case "js", "jsx", "ts", "tsx", "mjs", "cjs":
		return funcDecls["js"]
	case "java":
		return funcDecls["java"]
	default:
		return nil
	}
}

// sourceComplexity estimates cyclomatic complexity per function. The value
// shape drives the highest-priority location extractor:
//
//	{
//	  "complexities": [{"name": ..., "metrics": {"complexity": n,
//	      "location": {startLine, startColumn, endLine, endColumn}}}],
//	  "maxComplexity": n,
//	}
func sourceComplexity(_ context.Context, fc *plugin.FactContext) (any, error) {
	if fc.File.IsGlobal() {
		return nil, nil
	}
	ext := strings.TrimPrefix(filepath.Ext(fc.File.Name), ".")
	decl := declPattern(ext)
	if decl == nil {
		return map[string]any{"complexities": []any{}, "maxComplexity": 0}, nil
	}

	lines := strings.Split(fc.File.Content, "\n")
	var complexities []any
	maxComplexity := 0

	for i := 0; i < len(lines); i++ {
		m := decl.FindStringSubmatchIndex(lines[i])
		if m == nil {
			continue
		}
		name := funcName(decl, lines[i])
		endLine, body := functionBody(lines, i)
		complexity := 1 + len(branchKeywords.FindAllString(body, -1))
		if complexity > maxComplexity {
			maxComplexity = complexity
		}
		complexities = append(complexities, map[string]any{
			"name": name,
			"metrics": map[string]any{
				"complexity": complexity,
				"location": map[string]any{
					"startLine":   i + 1,
					"startColumn": m[0] + 1,
					"endLine":     endLine + 1,
					"endColumn":   len(lines[endLine]) + 1,
				},
			},
		})
		i = endLine
	}

	if complexities == nil {
		complexities = []any{}
	}
	return map[string]any{
		"complexities":  complexities,
		"maxComplexity": maxComplexity,
	}, nil
}

func funcName(decl *regexp.Regexp, line string) string {
	for _, group := range decl.FindStringSubmatch(line)[1:] {
		group = strings.TrimSpace(group)
		if group != "" && !strings.HasPrefix(group, "(") {
			return group
		}
	}
	return "anonymous"
}

// functionBody returns the last line index of the brace-balanced body
// starting at startLine, plus the body text.
func functionBody(lines []string, startLine int) (int, string) {
	depth := 0
	opened := false
	var body strings.Builder
	for i := startLine; i < len(lines); i++ {
		body.WriteString(lines[i])
		body.WriteString("\n")
		for _, ch := range lines[i] {
			switch ch {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return i, body.String()
		}
	}
	return len(lines) - 1, body.String()
}
