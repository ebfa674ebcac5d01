package agent

// Severity tiers attached to security findings.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists every tier from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Finding represents a single issue or metric reported by an agent.
type Finding struct {
	File       string   `json:"file"`
	Issue      string   `json:"issue"`
	Detail     string   `json:"detail"`
	Line       int      `json:"line,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
	CVEMatches any      `json:"cve_matches,omitempty"`
}

// Result is the mapping an agent produces. Values must be JSON-safe.
type Result map[string]any

// ErrorResult wraps a failure message in the shape every renderer understands.
func ErrorResult(msg string) Result {
	return Result{"error": msg}
}
