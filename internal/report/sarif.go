package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/codespectre/internal/agent"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"

// sarifReport is the top-level SARIF v2.1.0 structure.
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	ShortDescription sarifMessage      `json:"shortDescription"`
	DefaultConfig    sarifDefaultLevel `json:"defaultConfiguration"`
}

type sarifDefaultLevel struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string         `json:"ruleId"`
	Level     string         `json:"level"`
	Message   sarifMessage   `json:"message"`
	Locations []sarifLoc     `json:"locations,omitempty"`
	Props     map[string]any `json:"properties,omitempty"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// Generate writes SARIF v2.1.0 output.
func (r *SARIFReporter) Generate(data Data) error {
	rules := buildSARIFRules(data.Findings)
	results := make([]sarifResult, 0, len(data.Findings))

	for _, f := range data.Findings {
		phys := sarifPhysical{ArtifactLocation: sarifArtifact{URI: f.File}}
		if f.Line > 0 {
			phys.Region = &sarifRegion{StartLine: f.Line}
		}
		props := map[string]any{"agent": f.Unit}
		if f.CVEMatches != nil {
			props["cveMatches"] = f.CVEMatches
		}
		results = append(results, sarifResult{
			RuleID:    ruleID(f),
			Level:     sarifLevel(f.Severity),
			Message:   sarifMessage{Text: fmt.Sprintf("%s: %s", f.Issue, f.Detail)},
			Locations: []sarifLoc{{PhysicalLocation: phys}},
			Props:     props,
		})
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    data.Tool,
						Version: data.Version,
						Rules:   rules,
					},
				},
				Results: results,
			},
		},
	}

	enc := json.NewEncoder(r.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode SARIF report: %w", err)
	}
	return nil
}

func sarifLevel(s agent.Severity) string {
	switch s {
	case agent.SeverityCritical:
		return "error"
	case agent.SeverityHigh:
		return "error"
	case agent.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

var (
	quoted   = regexp.MustCompile(`'[^']*'`)
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
)

// ruleID derives a stable rule identifier from the agent and issue text,
// dropping quoted specifics such as module names.
func ruleID(f Finding) string {
	issue := strings.ToLower(quoted.ReplaceAllString(f.Issue, ""))
	slug := strings.Trim(nonAlnum.ReplaceAllString(issue, "-"), "-")
	return f.Unit + "/" + slug
}

// buildSARIFRules returns one rule per distinct rule ID, in order of first use.
func buildSARIFRules(findings []Finding) []sarifRule {
	rules := make([]sarifRule, 0)
	seen := make(map[string]bool)
	for _, f := range findings {
		id := ruleID(f)
		if seen[id] {
			continue
		}
		seen[id] = true
		desc := strings.TrimSpace(quoted.ReplaceAllString(f.Issue, ""))
		desc = strings.Join(strings.Fields(desc), " ")
		rules = append(rules, sarifRule{
			ID:               id,
			ShortDescription: sarifMessage{Text: desc},
			DefaultConfig:    sarifDefaultLevel{Level: sarifLevel(f.Severity)},
		})
	}
	return rules
}
