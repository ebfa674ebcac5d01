// Package severity classifies security findings into fixed tiers.
package severity

import (
	"strings"

	"github.com/ppiankov/codespectre/internal/agent"
)

// ForImport returns the tier for an insecure import of the given module.
func ForImport(module string) agent.Severity {
	if sev, ok := ImportSeverities[module]; ok {
		return sev
	}
	return Default
}

// ForPattern returns the tier for an insecure code pattern, identified by its key
// (for example "shell=True" or "password=").
func ForPattern(key string) agent.Severity {
	for _, p := range patternSeverities {
		if strings.Contains(key, p.marker) {
			return p.severity
		}
	}
	return Default
}

// Rank orders tiers: CRITICAL is 0, LOW is 3. Unknown tiers rank below LOW.
func Rank(s agent.Severity) int {
	for i, tier := range agent.Severities {
		if tier == s {
			return i
		}
	}
	return len(agent.Severities)
}

// AtLeast reports whether s is as severe as min or more. An empty min admits
// every tier, including findings with no tier.
func AtLeast(s, min agent.Severity) bool {
	if min == "" {
		return true
	}
	return Rank(s) <= Rank(min)
}
