package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archetype-labs/archlint/pkg/core"
)

func sampleReport() *core.Report {
	report := core.NewReport("node-fullstack")
	report.Add("src/app.js", []core.Issue{
		{
			Rule:     "no-console",
			Message:  "console statements are not allowed",
			Severity: core.SeverityWarning,
			Location: core.Location{StartLine: 12, StartColumn: 3, EndLine: 12, EndColumn: 14},
		},
		{
			Rule:     "todo-density",
			Message:  "too many TODO markers",
			Severity: core.SeverityHint,
			Location: core.FallbackLocation(),
		},
	})
	report.Add(core.GlobalFileName, []core.Issue{
		{
			Rule:     "outdated-dependencies",
			Message:  "dependency below minimum version",
			Severity: core.SeverityError,
			Location: core.FallbackLocation(),
		},
	})
	return report
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeText).Report(sampleReport(), core.SeverityHint))

	out := buf.String()
	assert.Contains(t, out, "src/app.js")
	assert.Contains(t, out, "no-console")
	assert.Contains(t, out, "12:3")
	assert.Contains(t, out, "(repository)", "global issues show a repository label")
	assert.Contains(t, out, "3 issue(s): 0 fatality, 1 error, 1 warning, 0 info, 1 hint (0 exempt)")
	assert.NotContains(t, out, "below severity threshold")
}

func TestRenderTableMinSeverity(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeText).Report(sampleReport(), core.SeverityError))

	out := buf.String()
	assert.Contains(t, out, "outdated-dependencies")
	assert.NotContains(t, out, "no-console")
	assert.Contains(t, out, "2 issue(s) below severity threshold not shown")
	assert.Contains(t, out, "3 issue(s)", "counts include hidden issues")
}

func TestRenderTableExempt(t *testing.T) {
	report := core.NewReport("node-fullstack")
	report.Add("src/app.js", []core.Issue{
		{
			Rule:     "no-console",
			Message:  "console statements are not allowed",
			Severity: core.SeverityFatality,
			Exempt:   true,
		},
	})

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeText).Report(report, core.SeverityHint))

	out := buf.String()
	assert.Contains(t, out, "exempt")
	assert.Contains(t, out, "0 issue(s)", "exempt issues do not count as active")
	assert.NotContains(t, out, "below severity threshold")
}

func TestRenderTableCacheHits(t *testing.T) {
	report := sampleReport()
	report.CacheHits = []string{"a.js", "b.js"}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeText).Report(report, core.SeverityHint))
	assert.Contains(t, buf.String(), "2 file(s) unchanged, skipped")
}

func TestRenderTableLostFiles(t *testing.T) {
	report := sampleReport()
	report.Lost = []string{"src/gone.js"}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeText).Report(report, core.SeverityHint))
	assert.Contains(t, buf.String(), "1 file(s) not analyzed, results incomplete")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeJSON).Report(sampleReport(), core.SeverityHint))

	var decoded core.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Files["src/app.js"], 2)
	assert.Equal(t, 1, decoded.Counts.Errors)
}

func TestRenderRules(t *testing.T) {
	rules := []core.RuleInfo{
		{Name: "no-console", Archetype: "node-fullstack", Severity: core.SeverityWarning,
			Message: "console statements are not allowed", Facts: []string{"filePatterns"}},
		{Name: "max-complexity", Archetype: "node-fullstack", Severity: core.SeverityError,
			Message: "function too complex", Facts: []string{"sourceComplexity", "fileMetadata"}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeText).Rules(rules))

	out := buf.String()
	assert.Contains(t, out, "no-console")
	assert.Contains(t, out, "sourceComplexity +1", "multiple facts are abbreviated")
	assert.Contains(t, out, "(2 rules)")
}

func TestRenderArchetypes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, ModeText).Archetypes([]string{"go-service", "node-fullstack"}))
	assert.Equal(t, "go-service\nnode-fullstack\n", buf.String())
}

func TestUnknownModeFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, Mode("xml")).Archetypes([]string{"go-service"}))
	assert.Equal(t, "go-service\n", buf.String())
}
