package analyzer

import (
	"github.com/ppiankov/codespectre/internal/agent"
)

// Summary holds aggregated statistics about an agent's findings.
type Summary struct {
	TotalFindings int            `json:"total_findings"`
	FilesAffected int            `json:"files_affected"`
	BySeverity    map[string]int `json:"by_severity,omitempty"`
	ByIssue       map[string]int `json:"by_issue"`
}

// AnalysisResult holds filtered findings and computed summary.
type AnalysisResult struct {
	Findings []agent.Finding `json:"findings"`
	Summary  Summary         `json:"summary"`
}

// AnalyzerConfig controls analysis behavior.
type AnalyzerConfig struct {
	// MinSeverity drops findings below this tier. Empty keeps everything.
	MinSeverity agent.Severity
	// CountSeverities fills Summary.BySeverity with every tier, zeroes included.
	CountSeverities bool
}
