package facts

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/archetype-labs/archlint/pkg/plugin"
)

func init() {
	for name, fn := range builtinOperators {
		plugin.RegisterOperator(plugin.OperatorFunc{OpName: name, Fn: fn})
	}
}

var builtinOperators = map[string]func(factValue, comparison any) (bool, error){
	"equal":       opEqual,
	"notEqual":    opNotEqual,
	"largerThan":  opLargerThan,
	"smallerThan": opSmallerThan,
	"contains":    opContains,
	"notContains": opNotContains,
	"matches":     opMatches,
	"olderThan":   opOlderThan,
	"exists":      opExists,
	"notExists":   opNotExists,
}

func opEqual(factValue, comparison any) (bool, error) {
	if fa, ok1 := toFloat(factValue); ok1 {
		if fb, ok2 := toFloat(comparison); ok2 {
			return fa == fb, nil
		}
	}
	return reflect.DeepEqual(factValue, comparison), nil
}

func opNotEqual(factValue, comparison any) (bool, error) {
	eq, err := opEqual(factValue, comparison)
	return !eq, err
}

func opLargerThan(factValue, comparison any) (bool, error) {
	fa, fb, err := bothFloats(factValue, comparison)
	if err != nil {
		return false, err
	}
	return fa > fb, nil
}

func opSmallerThan(factValue, comparison any) (bool, error) {
	fa, fb, err := bothFloats(factValue, comparison)
	if err != nil {
		return false, err
	}
	return fa < fb, nil
}

func opContains(factValue, comparison any) (bool, error) {
	switch v := factValue.(type) {
	case string:
		s, ok := comparison.(string)
		if !ok {
			return false, fmt.Errorf("contains: comparison %T against string fact", comparison)
		}
		return strings.Contains(v, s), nil
	case []string:
		for _, item := range v {
			if item == comparison {
				return true, nil
			}
		}
		return false, nil
	case []any:
		for _, item := range v {
			if eq, _ := opEqual(item, comparison); eq {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("contains: unsupported fact value %T", factValue)
	}
}

func opNotContains(factValue, comparison any) (bool, error) {
	ok, err := opContains(factValue, comparison)
	return !ok, err
}

func opMatches(factValue, comparison any) (bool, error) {
	pattern, ok := comparison.(string)
	if !ok {
		return false, fmt.Errorf("matches: comparison must be a pattern string, got %T", comparison)
	}
	s, ok := factValue.(string)
	if !ok {
		return false, fmt.Errorf("matches: fact value must be a string, got %T", factValue)
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// opOlderThan compares versions: true when the fact's version is older
// than the comparison version.
func opOlderThan(factValue, comparison any) (bool, error) {
	a, ok := factValue.(string)
	if !ok {
		return false, fmt.Errorf("olderThan: fact value must be a version string, got %T", factValue)
	}
	b, ok := comparison.(string)
	if !ok {
		return false, fmt.Errorf("olderThan: comparison must be a version string, got %T", comparison)
	}
	va, vb := canonicalVersion(a), canonicalVersion(b)
	if !semver.IsValid(va) || !semver.IsValid(vb) {
		return false, fmt.Errorf("olderThan: invalid version %q or %q", a, b)
	}
	return semver.Compare(va, vb) < 0, nil
}

func opExists(factValue, _ any) (bool, error) {
	return factValue != nil, nil
}

func opNotExists(factValue, _ any) (bool, error) {
	return factValue == nil, nil
}

// =============================================================================
// Helpers
// =============================================================================

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func bothFloats(a, b any) (float64, float64, error) {
	fa, ok := toFloat(a)
	if !ok {
		return 0, 0, fmt.Errorf("not a number: %T(%v)", a, a)
	}
	fb, ok := toFloat(b)
	if !ok {
		return 0, 0, fmt.Errorf("not a number: %T(%v)", b, b)
	}
	return fa, fb, nil
}

// canonicalVersion normalizes loose manifest versions ("^18.2.0", "18.x",
// "v1.2") to the strict form semver.Compare accepts.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "^~=<> ")
	v = strings.TrimPrefix(v, "v")
	v = strings.ReplaceAll(v, ".x", ".0")
	if v == "" {
		return ""
	}
	// semver requires major.minor.patch; pad short versions.
	switch strings.Count(v, ".") {
	case 0:
		v += ".0.0"
	case 1:
		v += ".0"
	}
	return "v" + v
}

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

// compilePattern caches compiled expressions; the same handful of patterns
// runs against every file in the repository.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	patternMu.Lock()
	re, ok := patternCache[pattern]
	patternMu.Unlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	patternMu.Lock()
	patternCache[pattern] = re
	patternMu.Unlock()
	return re, nil
}
