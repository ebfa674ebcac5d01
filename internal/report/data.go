package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/analyzer"
)

// section is the part of an agent result the flattened view cares about.
type section struct {
	Issues []agent.Finding `json:"issues"`
	Error  string          `json:"error"`
}

// NewData flattens every "issues" list in doc into one findings slice and
// collects agents that failed into Errors.
func NewData(doc *agent.Document, tool, version string, target Target) (Data, error) {
	data := Data{
		Tool:      tool,
		Version:   version,
		Timestamp: time.Now().UTC(),
		Target:    target,
	}

	var plain []agent.Finding
	for _, unit := range doc.Keys() {
		v, _ := doc.Get(unit)
		raw, err := json.Marshal(v)
		if err != nil {
			return Data{}, fmt.Errorf("marshal %s: %w", unit, err)
		}
		var s section
		if err := json.Unmarshal(raw, &s); err != nil {
			// Not an object, so it carries no findings.
			continue
		}
		if s.Error != "" {
			data.Errors = append(data.Errors, fmt.Sprintf("%s: %s", unit, s.Error))
		}
		for _, f := range s.Issues {
			data.Findings = append(data.Findings, Finding{Unit: unit, Finding: f})
			plain = append(plain, f)
		}
	}

	data.Summary = analyzer.Analyze(plain, analyzer.AnalyzerConfig{CountSeverities: true}).Summary
	return data, nil
}
