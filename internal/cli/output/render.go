// Package output renders analysis reports in the formats the CLI
// supports: a styled table for terminals and JSON for machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/archetype-labs/archlint/pkg/core"
)

// Mode selects the output format.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// Renderer writes reports and rule listings to a stream.
type Renderer struct {
	out  io.Writer
	mode Mode
}

// NewRenderer builds a renderer. Unknown modes fall back to text.
func NewRenderer(out io.Writer, mode Mode) *Renderer {
	if mode != ModeJSON {
		mode = ModeText
	}
	return &Renderer{out: out, mode: mode}
}

// Report renders a full analysis report. Issues below minSeverity are
// omitted from the table but still reflected in the summary counts.
func (r *Renderer) Report(report *core.Report, minSeverity core.Severity) error {
	if r.mode == ModeJSON {
		return r.renderJSON(report)
	}
	return r.renderTable(report, minSeverity)
}

func (r *Renderer) renderJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) renderTable(report *core.Report, minSeverity core.Severity) error {
	files := make([]string, 0, len(report.Files))
	for f := range report.Files {
		files = append(files, f)
	}
	sort.Strings(files)

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Location", "Severity", "Rule", "Message"})

	shown, shownIssues := 0, 0
	for _, f := range files {
		for _, issue := range report.Files[f] {
			if !issue.Severity.AtLeast(minSeverity) {
				continue
			}
			if !issue.Exempt {
				shownIssues++
			}
			name := f
			if f == core.GlobalFileName {
				name = "(repository)"
			}
			sev := issue.Severity.String()
			if issue.Exempt {
				sev = "exempt"
			}
			t.AppendRow(table.Row{
				name,
				fmt.Sprintf("%d:%d", issue.Location.StartLine, issue.Location.StartColumn),
				severityCell(sev),
				issue.Rule,
				issue.Message,
			})
			shown++
		}
	}

	if shown > 0 {
		t.Render()
	}
	r.summary(report, shownIssues)
	return nil
}

func (r *Renderer) summary(report *core.Report, shownIssues int) {
	c := report.Counts
	_, _ = fmt.Fprintf(r.out,
		"%d issue(s): %d fatality, %d error, %d warning, %d info, %d hint (%d exempt)\n",
		report.Total(), c.Fatalities, c.Errors, c.Warnings, c.Infos, c.Hints, c.Exempt)
	if hidden := report.Total() - shownIssues; hidden > 0 {
		_, _ = fmt.Fprintf(r.out, "%d issue(s) below severity threshold not shown\n", hidden)
	}
	if len(report.CacheHits) > 0 {
		_, _ = fmt.Fprintf(r.out, "%d file(s) unchanged, skipped\n", len(report.CacheHits))
	}
	if len(report.Lost) > 0 {
		_, _ = fmt.Fprintf(r.out, "%d file(s) not analyzed, results incomplete\n", len(report.Lost))
	}
}

// Rules renders a rule listing table.
func (r *Renderer) Rules(rules []core.RuleInfo) error {
	if r.mode == ModeJSON {
		return r.renderJSON(rules)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Rule", "Severity", "Facts", "Message"})
	for _, rule := range rules {
		t.AppendRow(table.Row{
			rule.Name,
			severityCell(rule.Severity.String()),
			joinShort(rule.Facts),
			rule.Message,
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(r.out, "(%d rules)\n", len(rules))
	return nil
}

// Archetypes renders the list of known archetype names.
func (r *Renderer) Archetypes(names []string) error {
	if r.mode == ModeJSON {
		return r.renderJSON(names)
	}
	for _, name := range names {
		_, _ = fmt.Fprintln(r.out, name)
	}
	return nil
}

func severityCell(sev string) string {
	switch sev {
	case "fatality", "error":
		return text.FgRed.Sprint(sev)
	case "warning":
		return text.FgYellow.Sprint(sev)
	case "exempt":
		return text.FgHiBlack.Sprint(sev)
	default:
		return sev
	}
}

func joinShort(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return fmt.Sprintf("%s +%d", items[0], len(items)-1)
	}
}
