package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"

	"github.com/ppiankov/codespectre/internal/agent"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

const reportTitle = "Codebase Analysis Report"

type htmlPage struct {
	Title    string
	Sections []htmlSection
}

type htmlSection struct {
	Key       string
	Title     string
	Error     string
	Summary   string
	Metrics   []htmlMetric
	HasIssues bool
	Issues    []agent.Finding
	JSON      string
}

type htmlMetric struct {
	Name  string
	Value string
}

type htmlWriter struct{}

func (htmlWriter) format() Format   { return FormatHTML }
func (htmlWriter) available() error { return nil }

func (htmlWriter) render(v *view) ([]byte, error) {
	if v.plainErr != nil {
		return nil, v.plainErr
	}
	page := htmlPage{Title: reportTitle}
	for _, key := range v.plain.Keys() {
		value, _ := v.plain.Get(key)
		sec, err := buildSection(key, value)
		if err != nil {
			return nil, err
		}
		page.Sections = append(page.Sections, sec)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func buildSection(key string, value any) (htmlSection, error) {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return htmlSection{}, fmt.Errorf("marshal %s: %w", key, err)
	}
	sec := htmlSection{Key: key, Title: sectionTitle(key), JSON: string(raw)}

	m, ok := value.(map[string]any)
	if !ok {
		return sec, nil
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch val := m[name].(type) {
		case string:
			switch name {
			case "error":
				sec.Error = val
			case "gemini_summary":
				sec.Summary = val
			default:
				sec.Metrics = append(sec.Metrics, htmlMetric{Name: sectionTitle(name), Value: val})
			}
		case float64, bool:
			sec.Metrics = append(sec.Metrics, htmlMetric{Name: sectionTitle(name), Value: formatScalar(val)})
		}
	}

	if _, ok := m["issues"]; ok {
		sec.HasIssues = true
		var s section
		if err := json.Unmarshal(raw, &s); err == nil {
			sec.Issues = s.Issues
		}
	}
	return sec, nil
}

// formatScalar prints JSON numbers without a trailing ".0" for integers.
func formatScalar(v any) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}
