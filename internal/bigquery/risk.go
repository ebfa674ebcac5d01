// Package bigquery scores dependency risk from vulnerability and maintenance
// tables kept in a BigQuery dataset.
package bigquery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"
)

// DefaultDataset holds the vulnerabilities, dependencies and security_patterns tables.
const DefaultDataset = "security_analytics"

// Config selects the project and dataset queried.
type Config struct {
	Project string
	Dataset string
}

// DependencyRisk is the risk profile of one imported package.
type DependencyRisk struct {
	Dependency          string  `json:"dependency"`
	Version             string  `json:"version,omitempty"`
	VulnerabilityCount  int     `json:"vulnerability_count"`
	AvgCVSSScore        float64 `json:"avg_cvss_score"`
	LatestVulnerability string  `json:"latest_vulnerability,omitempty"`
	DownloadCount       int64   `json:"download_count"`
	MaintenanceScore    float64 `json:"maintenance_score"`
	RiskScore           float64 `json:"calculated_risk_score"`
	RiskLevel           string  `json:"risk_level"`
}

// RiskAnalysis is the dependency risk query result.
type RiskAnalysis struct {
	Risks             []DependencyRisk `json:"risk_analysis"`
	TotalDependencies int              `json:"total_dependencies"`
	HighRiskCount     int              `json:"high_risk_count"`
	QueryStatus       string           `json:"query_status,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// VulnerabilityTrend aggregates the known vulnerabilities of one package.
type VulnerabilityTrend struct {
	Package            string  `json:"package"`
	VulnerabilityCount int     `json:"vulnerability_count"`
	AvgSeverity        float64 `json:"avg_severity"`
	LatestVulnDate     string  `json:"latest_vuln_date,omitempty"`
}

// TrendAnalysis is the vulnerability trend query result.
type TrendAnalysis struct {
	Trends        []VulnerabilityTrend `json:"trends"`
	TotalPackages int                  `json:"total_packages"`
	QueryStatus   string               `json:"query_status,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// SecurityPattern is a catalogue entry for an insecure code pattern.
type SecurityPattern struct {
	Pattern        string `json:"pattern"`
	Description    string `json:"description"`
	Severity       string `json:"severity"`
	Mitigation     string `json:"mitigation"`
	DetectionCount int64  `json:"detection_count"`
}

// PatternAnalysis is the security pattern query result.
type PatternAnalysis struct {
	Patterns      []SecurityPattern `json:"patterns"`
	TotalPatterns int               `json:"total_patterns"`
	QueryStatus   string            `json:"query_status,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Report bundles the three analyses. When the backend is absent only Status
// and Reason are set.
type Report struct {
	Status              string           `json:"status"`
	Reason              string           `json:"reason,omitempty"`
	DependencyRisks     *RiskAnalysis    `json:"dependency_risks,omitempty"`
	VulnerabilityTrends *TrendAnalysis   `json:"vulnerability_trends,omitempty"`
	SecurityPatterns    *PatternAnalysis `json:"security_patterns,omitempty"`
}

// Client runs the risk queries. A Client without a runner reports itself
// unavailable instead of failing.
type Client struct {
	runner  QueryRunner
	project string
	dataset string
	reason  string
}

// New connects to BigQuery when a project is configured.
func New(ctx context.Context, cfg Config) *Client {
	c := newClient(nil, cfg)
	if cfg.Project == "" {
		c.reason = "BigQuery project not configured; set GOOGLE_CLOUD_PROJECT"
		return c
	}
	runner, err := NewServiceRunner(ctx, cfg.Project)
	if err != nil {
		slog.Warn("BigQuery client not available", "error", err)
		c.reason = err.Error()
		return c
	}
	c.runner = runner
	return c
}

// NewWithRunner creates a Client around an existing QueryRunner.
func NewWithRunner(runner QueryRunner, cfg Config) *Client {
	return newClient(runner, cfg)
}

func newClient(runner QueryRunner, cfg Config) *Client {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	return &Client{runner: runner, project: cfg.Project, dataset: cfg.Dataset}
}

// Analyze runs every analysis for the given dependencies and pattern names.
func (c *Client) Analyze(ctx context.Context, dependencies, patterns []string) Report {
	if c.runner == nil {
		reason := c.reason
		if reason == "" {
			reason = "BigQuery client not available"
		}
		return Report{Status: "unavailable", Reason: reason}
	}
	risks := c.DependencyRisks(ctx, dependencies)
	trends := c.VulnerabilityTrends(ctx, dependencies)
	pats := c.SecurityPatterns(ctx, patterns)
	return Report{
		Status:              "ok",
		DependencyRisks:     &risks,
		VulnerabilityTrends: &trends,
		SecurityPatterns:    &pats,
	}
}

func (c *Client) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", c.project, c.dataset, name)
}

// DependencyRisks scores each dependency found in the dependencies table.
func (c *Client) DependencyRisks(ctx context.Context, deps []string) RiskAnalysis {
	if len(deps) == 0 {
		return RiskAnalysis{Risks: []DependencyRisk{}}
	}

	sql := fmt.Sprintf(`SELECT
  d.dependency_name,
  d.version,
  COUNT(v.vulnerability_id) AS vuln_count,
  AVG(v.cvss_score) AS avg_cvss,
  MAX(v.publication_date) AS latest_vuln,
  d.download_count_last_month,
  d.maintenance_score
FROM %s d
LEFT JOIN %s v ON d.dependency_name = v.package_name
WHERE d.dependency_name IN UNNEST(@dependencies)
GROUP BY d.dependency_name, d.version, d.download_count_last_month, d.maintenance_score
ORDER BY vuln_count DESC, avg_cvss DESC`, c.table("dependencies"), c.table("vulnerabilities"))

	rows, err := c.runner.Query(ctx, sql, map[string][]string{"dependencies": deps})
	if err != nil {
		slog.Warn("BigQuery dependency risk analysis failed", "error", err)
		return RiskAnalysis{Risks: []DependencyRisk{}, Error: fmt.Sprintf("analysis failed: %v", err)}
	}

	out := RiskAnalysis{Risks: make([]DependencyRisk, 0, len(rows)), QueryStatus: "success"}
	for _, row := range rows {
		vulns := int(parseInt(row["vuln_count"]))
		cvss := parseFloat(row["avg_cvss"])
		maint := parseFloat(row["maintenance_score"])
		score := RiskScore(vulns, cvss, maint)
		level := RiskLevel(score)
		if level == "HIGH" {
			out.HighRiskCount++
		}
		out.Risks = append(out.Risks, DependencyRisk{
			Dependency:          row["dependency_name"],
			Version:             row["version"],
			VulnerabilityCount:  vulns,
			AvgCVSSScore:        cvss,
			LatestVulnerability: formatTime(row["latest_vuln"]),
			DownloadCount:       parseInt(row["download_count_last_month"]),
			MaintenanceScore:    maint,
			RiskScore:           score,
			RiskLevel:           level,
		})
	}
	out.TotalDependencies = len(out.Risks)
	return out
}

// VulnerabilityTrends aggregates vulnerability counts and severity per package.
func (c *Client) VulnerabilityTrends(ctx context.Context, packages []string) TrendAnalysis {
	if len(packages) == 0 {
		return TrendAnalysis{Trends: []VulnerabilityTrend{}}
	}

	sql := fmt.Sprintf(`SELECT
  package_name,
  COUNT(*) AS vulnerability_count,
  AVG(severity_score) AS avg_severity,
  MAX(discovery_date) AS latest_vuln_date
FROM %s
WHERE package_name IN UNNEST(@packages)
GROUP BY package_name
ORDER BY vulnerability_count DESC`, c.table("vulnerabilities"))

	rows, err := c.runner.Query(ctx, sql, map[string][]string{"packages": packages})
	if err != nil {
		slog.Warn("BigQuery vulnerability trends query failed", "error", err)
		return TrendAnalysis{Trends: []VulnerabilityTrend{}, Error: fmt.Sprintf("query failed: %v", err)}
	}

	out := TrendAnalysis{Trends: make([]VulnerabilityTrend, 0, len(rows)), QueryStatus: "success"}
	for _, row := range rows {
		out.Trends = append(out.Trends, VulnerabilityTrend{
			Package:            row["package_name"],
			VulnerabilityCount: int(parseInt(row["vulnerability_count"])),
			AvgSeverity:        parseFloat(row["avg_severity"]),
			LatestVulnDate:     formatTime(row["latest_vuln_date"]),
		})
	}
	out.TotalPackages = len(out.Trends)
	return out
}

// SecurityPatterns looks up catalogue entries for the given pattern names.
func (c *Client) SecurityPatterns(ctx context.Context, patterns []string) PatternAnalysis {
	if len(patterns) == 0 {
		return PatternAnalysis{Patterns: []SecurityPattern{}}
	}

	sql := fmt.Sprintf(`SELECT
  pattern_name,
  description,
  severity_level,
  mitigation_advice,
  detection_count_last_30_days
FROM %s
WHERE pattern_name IN UNNEST(@patterns)
ORDER BY severity_level DESC`, c.table("security_patterns"))

	rows, err := c.runner.Query(ctx, sql, map[string][]string{"patterns": patterns})
	if err != nil {
		slog.Warn("BigQuery security patterns query failed", "error", err)
		return PatternAnalysis{Patterns: []SecurityPattern{}, Error: fmt.Sprintf("query failed: %v", err)}
	}

	out := PatternAnalysis{Patterns: make([]SecurityPattern, 0, len(rows)), QueryStatus: "success"}
	for _, row := range rows {
		out.Patterns = append(out.Patterns, SecurityPattern{
			Pattern:        row["pattern_name"],
			Description:    row["description"],
			Severity:       row["severity_level"],
			Mitigation:     row["mitigation_advice"],
			DetectionCount: parseInt(row["detection_count_last_30_days"]),
		})
	}
	out.TotalPatterns = len(out.Patterns)
	return out
}

// RiskScore weighs vulnerability count (50%, 10 points each, capped at 100),
// average CVSS (30%, normalised from 0-10) and lack of maintenance (20%).
func RiskScore(vulnCount int, avgCVSS, maintenance float64) float64 {
	vuln := math.Min(float64(vulnCount)*10, 100)
	cvss := avgCVSS / 10 * 100
	maint := (1 - maintenance) * 100
	score := vuln*0.5 + cvss*0.3 + maint*0.2
	return math.Round(score*100) / 100
}

// RiskLevel buckets a risk score: HIGH from 70, MEDIUM from 40.
func RiskLevel(score float64) string {
	switch {
	case score >= 70:
		return "HIGH"
	case score >= 40:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return int64(parseFloat(s))
}

// formatTime converts the REST API's epoch-seconds TIMESTAMP encoding to
// RFC 3339. DATE and DATETIME values are returned unchanged.
func formatTime(s string) string {
	if s == "" {
		return ""
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339)
}
