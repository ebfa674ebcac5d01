// Package security implements the agent that scans Python sources for insecure
// imports and code patterns and profiles the repository's dependencies.
package security

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/analyzer"
	"github.com/ppiankov/codespectre/internal/artifactregistry"
	"github.com/ppiankov/codespectre/internal/bigquery"
	"github.com/ppiankov/codespectre/internal/nvd"
	"github.com/ppiankov/codespectre/internal/pyast"
	"github.com/ppiankov/codespectre/internal/severity"
	"github.com/ppiankov/codespectre/internal/source"
)

// Name is the agent's key in the result document.
const Name = "security_findings"

// DefaultCVEResults caps the CVE matches attached to one finding.
const DefaultCVEResults = 3

// VulnLookup searches a vulnerability database by keyword.
type VulnLookup interface {
	Search(ctx context.Context, keyword string, maxResults int) nvd.Lookup
}

// RiskAnalyzer profiles dependencies and detected pattern categories.
type RiskAnalyzer interface {
	Analyze(ctx context.Context, dependencies, patterns []string) bigquery.Report
}

// ProvenanceChecker reports where dependencies are hosted.
type ProvenanceChecker interface {
	Check(ctx context.Context, dependencies []string) artifactregistry.Provenance
}

// Collaborators are the external services the agent consults. Any of them may
// be nil; the corresponding output then reports the service as unavailable.
type Collaborators struct {
	CVE        VulnLookup
	Risk       RiskAnalyzer
	Provenance ProvenanceChecker
}

// Agent scans for security issues.
type Agent struct {
	root        agent.Root
	exclude     []string
	cveResults  int
	minSeverity agent.Severity
	collab      Collaborators
}

// New returns a factory for security agents. Recognised options:
// "exclude_dirs", "cve_max_results" and "min_severity".
func New(collab Collaborators) agent.Factory {
	return func(root agent.Root, opts agent.Options) agent.Agent {
		return &Agent{
			root:        root,
			exclude:     opts.Strings("exclude_dirs"),
			cveResults:  opts.Int("cve_max_results", DefaultCVEResults),
			minSeverity: agent.Severity(strings.ToUpper(opts.String("min_severity", ""))),
			collab:      collab,
		}
	}
}

// Name implements agent.Agent.
func (a *Agent) Name() string { return Name }

// Run implements agent.Agent.
func (a *Agent) Run(ctx context.Context) (agent.Result, error) {
	files, err := source.PythonFiles(a.root, a.exclude...)
	if err != nil {
		return nil, fmt.Errorf("list python files: %w", err)
	}
	slog.Info("Scanning for vulnerabilities", "agent", Name, "files", len(files))

	var findings []agent.Finding
	deps := make(map[string]bool)
	categories := make(map[string]bool)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := source.Read(a.root, f)
		if err != nil {
			slog.Debug("Skipping unreadable file", "file", f.Path, "error", err)
			continue
		}

		findings = append(findings, a.scanImports(ctx, f.Path, content)...)
		patternFindings, cats := scanPatterns(f.Path, content)
		findings = append(findings, patternFindings...)
		for _, c := range cats {
			categories[c] = true
		}

		if tree, err := pyast.Parse(ctx, content); err == nil {
			for _, pkg := range tree.Imports() {
				deps[pkg] = true
			}
			tree.Close()
		}
	}

	analysis := analyzer.Analyze(findings, analyzer.AnalyzerConfig{
		MinSeverity:     a.minSeverity,
		CountSeverities: true,
	})
	dependencies := sortedKeys(deps)
	patterns := sortedKeys(categories)

	return agent.Result{
		"count":                 analysis.Summary.TotalFindings,
		"issues":                analysis.Findings,
		"dependencies":          dependencies,
		"dependencies_analyzed": len(dependencies),
		"risk_analysis":         a.riskAnalysis(ctx, dependencies, patterns),
		"package_provenance":    a.provenance(ctx, dependencies),
		"summary":               severitySummary(analysis.Summary),
	}, nil
}

func (a *Agent) scanImports(ctx context.Context, path string, content []byte) []agent.Finding {
	var findings []agent.Finding
	for _, rule := range insecureImports {
		loc := rule.re.FindIndex(content)
		if loc == nil {
			continue
		}
		f := agent.Finding{
			File:     path,
			Issue:    fmt.Sprintf("Insecure import '%s' detected", rule.module),
			Detail:   rule.detail,
			Line:     lineAt(content, loc[1]-1),
			Severity: severity.ForImport(rule.module),
		}
		if a.collab.CVE != nil {
			f.CVEMatches = a.collab.CVE.Search(ctx, rule.module, a.cveResults)
		}
		findings = append(findings, f)
	}
	return findings
}

// scanPatterns reports each pattern at most once per line.
func scanPatterns(path string, content []byte) ([]agent.Finding, []string) {
	var findings []agent.Finding
	var categories []string
	for _, rule := range insecurePatterns {
		lastLine := 0
		for _, loc := range rule.re.FindAllIndex(content, -1) {
			line := lineAt(content, loc[1]-1)
			if line == lastLine {
				continue
			}
			lastLine = line
			findings = append(findings, agent.Finding{
				File:     path,
				Issue:    rule.issue,
				Detail:   rule.detail,
				Line:     line,
				Severity: severity.ForPattern(rule.key),
			})
		}
		if lastLine > 0 {
			categories = append(categories, rule.category)
		}
	}
	return findings, categories
}

func (a *Agent) riskAnalysis(ctx context.Context, deps, patterns []string) bigquery.Report {
	if a.collab.Risk == nil {
		return bigquery.Report{Status: "unavailable", Reason: "risk analytics not configured"}
	}
	return a.collab.Risk.Analyze(ctx, deps, patterns)
}

func (a *Agent) provenance(ctx context.Context, deps []string) artifactregistry.Provenance {
	if a.collab.Provenance == nil {
		return artifactregistry.Provenance{
			Status:   "unavailable",
			Reason:   "package provenance not configured",
			Internal: []artifactregistry.Hosted{},
			Public:   []string{},
		}
	}
	return a.collab.Provenance.Check(ctx, deps)
}

func severitySummary(s analyzer.Summary) map[string]int {
	out := make(map[string]int, len(agent.Severities))
	for _, sev := range agent.Severities {
		out[strings.ToLower(string(sev))+"_issues"] = s.BySeverity[string(sev)]
	}
	return out
}

// lineAt returns the 1-based line containing byte offset off.
func lineAt(content []byte, off int) int {
	if off < 0 {
		off = 0
	}
	return bytes.Count(content[:off], []byte{'\n'}) + 1
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
