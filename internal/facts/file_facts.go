package facts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/archetype-labs/archlint/pkg/plugin"
)

func init() {
	plugin.RegisterFact(plugin.FactFunc{FactName: "fileMetadata", Fn: fileMetadata})
	plugin.RegisterFact(plugin.FactFunc{FactName: "filePatterns", Fn: filePatterns})
}

// fileMetadata produces basic metrics for one file.
func fileMetadata(_ context.Context, fc *plugin.FactContext) (any, error) {
	if fc.File.IsGlobal() {
		return nil, nil
	}
	content := fc.File.Content
	lineCount := 0
	if content != "" {
		lineCount = strings.Count(content, "\n") + 1
	}
	return map[string]any{
		"fileName":  fc.File.Name,
		"path":      fc.File.Path,
		"extension": strings.TrimPrefix(filepath.Ext(fc.File.Name), "."),
		"size":      len(content),
		"lineCount": lineCount,
	}, nil
}

// filePatterns scans one file for the named regular expressions in the
// archetype's "patterns" option. The value shape is:
//
//	{
//	  "counts":  {patternName: n},
//	  "matches": {patternName: [{lineNumber, columnNumber, match}, ...]},
//	}
//
// Line and column numbers are 1-based.
func filePatterns(_ context.Context, fc *plugin.FactContext) (any, error) {
	if fc.File.IsGlobal() {
		return nil, nil
	}
	patterns, err := patternOption(fc.Options)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]any, len(patterns))
	matches := make(map[string]any, len(patterns))
	lines := strings.Split(fc.File.Content, "\n")

	for name, pattern := range patterns {
		re, err := compilePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", name, err)
		}
		var hits []any
		for i, line := range lines {
			for _, loc := range re.FindAllStringIndex(line, -1) {
				hits = append(hits, map[string]any{
					"lineNumber":   i + 1,
					"columnNumber": loc[0] + 1,
					"match":        line[loc[0]:loc[1]],
				})
			}
		}
		counts[name] = len(hits)
		if len(hits) > 0 {
			matches[name] = hits
		}
	}

	return map[string]any{"counts": counts, "matches": matches}, nil
}

// patternOption extracts the patterns map from archetype options, tolerating
// the map[string]any shape JSON decoding produces.
func patternOption(opts map[string]any) (map[string]string, error) {
	raw, ok := opts["patterns"]
	if !ok {
		return nil, nil
	}
	out := make(map[string]string)
	switch m := raw.(type) {
	case map[string]string:
		return m, nil
	case map[string]any:
		for name, v := range m {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("pattern %s is %T, want string", name, v)
			}
			out[name] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("patterns option is %T, want map", raw)
	}
}
