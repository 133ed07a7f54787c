package core

// Counts aggregates severities across a whole run.
type Counts struct {
	Fatalities int `json:"fatalities"`
	Errors     int `json:"errors"`
	Warnings   int `json:"warnings"`
	Infos      int `json:"infos"`
	Hints      int `json:"hints"`
	Exempt     int `json:"exempt"`
}

// Report is the final result of one analysis run: issues grouped by file
// plus aggregate counts. It is built incrementally as units complete and
// finalized once the scheduler drains its queue. Aggregation is by
// summation, so it is independent of unit completion order.
type Report struct {
	Archetype string             `json:"archetype"`
	Repo      string             `json:"repo,omitempty"`
	Files     map[string][]Issue `json:"files"`
	Counts    Counts             `json:"counts"`
	// CacheHits lists files skipped because their content was unchanged.
	CacheHits []string `json:"cache_hits,omitempty"`
	// Lost lists files whose evaluation was rejected (timeout, crashed
	// worker). They carry no issues and must be re-analyzed next run.
	Lost []string `json:"lost,omitempty"`
}

// NewReport returns an empty report for the given archetype.
func NewReport(archetype string) *Report {
	return &Report{
		Archetype: archetype,
		Files:     make(map[string][]Issue),
	}
}

// Add records issues for one unit and updates the tallies.
func (r *Report) Add(file string, issues []Issue) {
	if len(issues) == 0 {
		return
	}
	r.Files[file] = append(r.Files[file], issues...)
	for _, is := range issues {
		if is.Exempt {
			r.Counts.Exempt++
			continue
		}
		switch is.Severity {
		case SeverityFatality:
			r.Counts.Fatalities++
		case SeverityError:
			r.Counts.Errors++
		case SeverityWarning:
			r.Counts.Warnings++
		case SeverityInfo:
			r.Counts.Infos++
		case SeverityHint:
			r.Counts.Hints++
		}
	}
}

// HasFatality reports whether the run contains at least one non-exempt
// fatality. CLI exit codes and CI gating key off this.
func (r *Report) HasFatality() bool {
	return r.Counts.Fatalities > 0
}

// ExitCode maps the report to a process exit code.
func (r *Report) ExitCode() int {
	if r.HasFatality() {
		return 1
	}
	return 0
}

// Total returns the number of non-exempt issues.
func (r *Report) Total() int {
	c := r.Counts
	return c.Fatalities + c.Errors + c.Warnings + c.Infos + c.Hints
}
