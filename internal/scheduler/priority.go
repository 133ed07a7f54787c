package scheduler

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/archetype-labs/archlint/pkg/core"
)

// Batch priorities, ordered.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// batchSize is the fixed number of files per batch.
const batchSize = 10

// Batch is one unit of scheduled work, tagged by the priority of its
// composition.
type Batch struct {
	Files    []core.FileData
	Priority string
}

// entryPointNames front-load files that anchor an application: issues there
// tend to matter most and gate everything downstream.
var entryPointNames = regexp.MustCompile(`^(main|index|server|app|application)\.[a-z]+$`)

// importStmt approximates dependency fan-out without parsing.
var importStmt = regexp.MustCompile(`(?m)^\s*(?:import\b|from\s+\S+\s+import|require\s*\(|const\s+\w+\s*=\s*require)`)

var extensionWeight = map[string]int{
	"go": 10, "ts": 10, "tsx": 10, "js": 10, "jsx": 10, "java": 10,
	"json": 6, "yaml": 4, "yml": 4,
}

// score ranks one file. recent holds paths edited within the watch window.
func score(f core.FileData, recent map[string]bool) int {
	s := 0
	if entryPointNames.MatchString(strings.ToLower(f.Name)) {
		s += 50
	}
	if recent[f.Path] {
		s += 30
	}
	fanout := len(importStmt.FindAllString(f.Content, 12))
	s += fanout * 2

	ext := strings.TrimPrefix(filepath.Ext(f.Name), ".")
	s += extensionWeight[ext]

	switch {
	case len(f.Content) > 32*1024:
		s += 10
	case len(f.Content) > 4*1024:
		s += 5
	}
	return s
}

// batchPriority tags a batch by its average score.
func batchPriority(scores []int) string {
	if len(scores) == 0 {
		return PriorityLow
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	switch avg := sum / len(scores); {
	case avg >= 60:
		return PriorityCritical
	case avg >= 40:
		return PriorityHigh
	case avg >= 20:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
