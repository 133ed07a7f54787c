package core

// RuleInfo provides metadata about a resolved rule for documentation/tooling.
type RuleInfo struct {
	Name        string   `json:"name"`
	Archetype   string   `json:"archetype"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Facts       []string `json:"facts,omitempty"`
	Operators   []string `json:"operators,omitempty"`
	Description string   `json:"description,omitempty"`
}
