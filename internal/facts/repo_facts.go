package facts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"

	"github.com/archetype-labs/archlint/pkg/plugin"
)

func init() {
	plugin.RegisterFact(plugin.FactFunc{FactName: "dependencyVersions", IsGlobal: true, Fn: dependencyVersions})
	plugin.RegisterFact(plugin.FactFunc{FactName: "directoryStructure", IsGlobal: true, Fn: directoryStructure})
	plugin.RegisterFact(plugin.FactFunc{FactName: "repositoryInfo", IsGlobal: true, Fn: repositoryInfo})

	plugin.RegisterErrorAction("core:skipUnit", func(_ context.Context, _ *plugin.FactContext, cause error) (any, error) {
		return nil, cause
	})
	plugin.RegisterErrorAction("core:useDefault", func(_ context.Context, _ *plugin.FactContext, _ error) (any, error) {
		return nil, nil
	})
}

// dependencyVersions compares manifest dependencies against the archetype's
// minimum versions. Understands package.json and go.mod. Value shape:
//
//	{
//	  "violations": [{"dependency", "installed", "minimum", "manifest"}],
//	  "violationCount": n,
//	}
func dependencyVersions(_ context.Context, fc *plugin.FactContext) (any, error) {
	minimums := minimumVersions(fc.Options)
	var violations []any

	for _, f := range fc.Files {
		switch f.Name {
		case "package.json":
			deps, err := packageJSONDeps(f.Content)
			if err != nil {
				fc.Logger.Warn("unreadable package.json", "path", f.Path, "error", err)
				continue
			}
			violations = append(violations, checkMinimums(deps, minimums, f.Path)...)
		case "go.mod":
			deps, err := goModDeps(f.Content, f.Path)
			if err != nil {
				fc.Logger.Warn("unreadable go.mod", "path", f.Path, "error", err)
				continue
			}
			violations = append(violations, checkMinimums(deps, minimums, f.Path)...)
		}
	}

	if violations == nil {
		violations = []any{}
	}
	return map[string]any{
		"violations":     violations,
		"violationCount": len(violations),
	}, nil
}

func checkMinimums(deps map[string]string, minimums map[string]string, manifest string) []any {
	var out []any
	for dep, minimum := range minimums {
		installed, ok := deps[dep]
		if !ok {
			continue
		}
		vi, vm := canonicalVersion(installed), canonicalVersion(minimum)
		if !semver.IsValid(vi) || !semver.IsValid(vm) {
			continue
		}
		if semver.Compare(vi, vm) < 0 {
			out = append(out, map[string]any{
				"dependency": dep,
				"installed":  installed,
				"minimum":    minimum,
				"manifest":   manifest,
			})
		}
	}
	return out
}

func packageJSONDeps(content string) (map[string]string, error) {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &manifest); err != nil {
		return nil, err
	}
	deps := make(map[string]string, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for k, v := range manifest.DevDependencies {
		deps[k] = v
	}
	for k, v := range manifest.Dependencies {
		deps[k] = v
	}
	return deps, nil
}

func goModDeps(content, path string) (map[string]string, error) {
	mf, err := modfile.ParseLax(path, []byte(content), nil)
	if err != nil {
		return nil, err
	}
	deps := make(map[string]string, len(mf.Require))
	for _, req := range mf.Require {
		deps[req.Mod.Path] = req.Mod.Version
	}
	return deps, nil
}

func minimumVersions(opts map[string]any) map[string]string {
	raw, ok := opts["minimumDependencyVersions"]
	if !ok {
		return nil
	}
	switch m := raw.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}

// directoryStructure checks the archetype's expected directories against
// the repository root. Value shape: {"missing": [...], "present": [...],
// "missingCount": n}.
func directoryStructure(_ context.Context, fc *plugin.FactContext) (any, error) {
	expected := stringSliceOption(fc.Options, "expectedDirectories")
	missing := []any{}
	present := []any{}
	for _, dir := range expected {
		info, err := os.Stat(filepath.Join(fc.RepoRoot, filepath.FromSlash(dir)))
		if err != nil || !info.IsDir() {
			missing = append(missing, dir)
			continue
		}
		present = append(present, dir)
	}
	return map[string]any{
		"missing":      missing,
		"present":      present,
		"missingCount": len(missing),
	}, nil
}

// repositoryInfo summarizes the run's file set.
func repositoryInfo(_ context.Context, fc *plugin.FactContext) (any, error) {
	totalSize := 0
	extensions := map[string]any{}
	for _, f := range fc.Files {
		totalSize += len(f.Content)
		ext := strings.TrimPrefix(filepath.Ext(f.Name), ".")
		if ext == "" {
			continue
		}
		if n, ok := extensions[ext].(int); ok {
			extensions[ext] = n + 1
		} else {
			extensions[ext] = 1
		}
	}
	return map[string]any{
		"repoUrl":    fc.RepoURL,
		"fileCount":  len(fc.Files),
		"totalSize":  totalSize,
		"extensions": extensions,
	}, nil
}

func stringSliceOption(opts map[string]any, key string) []string {
	raw, ok := opts[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
