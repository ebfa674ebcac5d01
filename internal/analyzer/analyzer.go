package analyzer

import (
	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/severity"
)

// Analyze filters findings by minimum severity and computes aggregated summary statistics.
func Analyze(findings []agent.Finding, cfg AnalyzerConfig) *AnalysisResult {
	filtered := make([]agent.Finding, 0, len(findings))
	for _, f := range findings {
		if severity.AtLeast(f.Severity, cfg.MinSeverity) {
			filtered = append(filtered, f)
		}
	}

	summary := Summary{
		TotalFindings: len(filtered),
		ByIssue:       make(map[string]int),
	}
	if cfg.CountSeverities {
		summary.BySeverity = make(map[string]int, len(agent.Severities))
		for _, s := range agent.Severities {
			summary.BySeverity[string(s)] = 0
		}
	}

	files := make(map[string]bool)
	for _, f := range filtered {
		summary.ByIssue[f.Issue]++
		if summary.BySeverity != nil && f.Severity != "" {
			summary.BySeverity[string(f.Severity)]++
		}
		files[f.File] = true
	}
	summary.FilesAffected = len(files)

	return &AnalysisResult{
		Findings: filtered,
		Summary:  summary,
	}
}
