package analyzer

import (
	"testing"

	"github.com/ppiankov/codespectre/internal/agent"
)

func TestAnalyzeFiltersByMinSeverity(t *testing.T) {
	findings := []agent.Finding{
		{File: "a.py", Issue: "Insecure import 'pickle' detected", Severity: agent.SeverityHigh},
		{File: "a.py", Issue: "Weak hash algorithm", Severity: agent.SeverityMedium},
		{File: "b.py", Issue: "Use of eval()", Severity: agent.SeverityCritical},
	}

	analysis := Analyze(findings, AnalyzerConfig{MinSeverity: agent.SeverityHigh, CountSeverities: true})

	if analysis.Summary.TotalFindings != 2 {
		t.Errorf("TotalFindings = %d, want 2", analysis.Summary.TotalFindings)
	}
	if len(analysis.Findings) != 2 {
		t.Errorf("Findings len = %d, want 2", len(analysis.Findings))
	}
	if analysis.Summary.FilesAffected != 2 {
		t.Errorf("FilesAffected = %d, want 2", analysis.Summary.FilesAffected)
	}
	if analysis.Summary.BySeverity["MEDIUM"] != 0 {
		t.Errorf("BySeverity[MEDIUM] = %d, want 0", analysis.Summary.BySeverity["MEDIUM"])
	}
}

func TestAnalyzeSeverityHistogram(t *testing.T) {
	findings := []agent.Finding{
		{File: "a.py", Issue: "x", Severity: agent.SeverityHigh},
		{File: "a.py", Issue: "x", Severity: agent.SeverityHigh},
		{File: "b.py", Issue: "y", Severity: agent.SeverityMedium},
	}

	analysis := Analyze(findings, AnalyzerConfig{CountSeverities: true})

	if analysis.Summary.BySeverity["HIGH"] != 2 {
		t.Errorf("BySeverity[HIGH] = %d, want 2", analysis.Summary.BySeverity["HIGH"])
	}
	if analysis.Summary.BySeverity["MEDIUM"] != 1 {
		t.Errorf("BySeverity[MEDIUM] = %d, want 1", analysis.Summary.BySeverity["MEDIUM"])
	}
	if _, ok := analysis.Summary.BySeverity["CRITICAL"]; !ok {
		t.Error("BySeverity should contain every tier")
	}
	if analysis.Summary.ByIssue["x"] != 2 {
		t.Errorf("ByIssue[x] = %d, want 2", analysis.Summary.ByIssue["x"])
	}
}

func TestAnalyzeNoFindings(t *testing.T) {
	analysis := Analyze(nil, AnalyzerConfig{})

	if analysis.Summary.TotalFindings != 0 {
		t.Errorf("TotalFindings = %d, want 0", analysis.Summary.TotalFindings)
	}
	if analysis.Findings == nil {
		t.Error("Findings should be an empty slice, not nil")
	}
	if analysis.Summary.BySeverity != nil {
		t.Error("BySeverity should be nil when severities are not counted")
	}
}

func TestAnalyzeUnclassifiedFindingsKeptWithoutThreshold(t *testing.T) {
	findings := []agent.Finding{
		{File: "big.py", Issue: "Large file"},
		{File: "loops.py", Issue: "Nested loops"},
	}

	analysis := Analyze(findings, AnalyzerConfig{})

	if analysis.Summary.TotalFindings != 2 {
		t.Errorf("TotalFindings = %d, want 2", analysis.Summary.TotalFindings)
	}
}
