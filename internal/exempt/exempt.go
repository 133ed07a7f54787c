package exempt

import (
	"log/slog"
	"time"
)

// Emitter receives audit events for exemption usage.
// Implemented by internal/telemetry.
type Emitter interface {
	Emit(event string, payload map[string]any)
}

// IsExempt reports whether (repoURL, rule) is suppressed by a currently
// valid exemption. A missing repo URL means no exemption can ever match.
func IsExempt(repoURL, rule string, exemptions []Exemption, now time.Time) bool {
	_, ok := Match(repoURL, rule, exemptions, now)
	return ok
}

// Match returns the first currently valid exemption for (repoURL, rule).
func Match(repoURL, rule string, exemptions []Exemption, now time.Time) (Exemption, bool) {
	if repoURL == "" {
		return Exemption{}, false
	}
	want := NormalizeRepoURL(repoURL)
	if want == "" {
		return Exemption{}, false
	}
	for _, e := range exemptions {
		if e.Rule != rule || e.Expired(now) {
			continue
		}
		if NormalizeRepoURL(e.Repo) == want {
			return e, true
		}
	}
	return Exemption{}, false
}

// Store evaluates exemptions for one repository and audits every match.
type Store struct {
	repoURL    string
	exemptions []Exemption
	logger     *slog.Logger
	telemetry  Emitter
}

// NewStore builds a store for one repository. A nil telemetry emitter
// disables auditing; a nil logger discards.
func NewStore(repoURL string, exemptions []Exemption, logger *slog.Logger, telemetry Emitter) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if repoURL == "" {
		// Not an error: analysis proceeds, nothing can be exempted.
		logger.Warn("no repository URL available, exemptions disabled")
	}
	return &Store{
		repoURL:    repoURL,
		exemptions: exemptions,
		logger:     logger,
		telemetry:  telemetry,
	}
}

// Check returns the matching exemption for a rule, if any. Matches are
// deliberately loud: they suppress real findings, so each one is logged at
// error level and emitted as a telemetry event for auditing.
func (s *Store) Check(rule string, now time.Time) (Exemption, bool) {
	e, ok := Match(s.repoURL, rule, s.exemptions, now)
	if !ok {
		return Exemption{}, false
	}
	s.logger.Error("rule exempted",
		"rule", rule,
		"repo", NormalizeRepoURL(s.repoURL),
		"reason", e.Reason,
		"expires", e.ExpirationDate.Format("2006-01-02"))
	if s.telemetry != nil {
		s.telemetry.Emit("exemption.matched", map[string]any{
			"rule":    rule,
			"repo":    NormalizeRepoURL(s.repoURL),
			"reason":  e.Reason,
			"expires": e.ExpirationDate.Format(time.RFC3339),
		})
	}
	return e, true
}
