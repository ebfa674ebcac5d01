package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ppiankov/codespectre/internal/agent"
)

var titleCaser = cases.Title(language.English)

// sectionTitle turns an agent key such as "parser_results" into "Parser Results".
func sectionTitle(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

// Markdown renders the prose report for doc.
func Markdown(doc *agent.Document) ([]byte, error) {
	plain, err := doc.Normalize()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeMarkdown(&buf, plain); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type markdownWriter struct{}

func (markdownWriter) format() Format   { return FormatMarkdown }
func (markdownWriter) available() error { return nil }

func (markdownWriter) render(v *view) ([]byte, error) {
	if v.plainErr != nil {
		return nil, v.plainErr
	}
	var buf bytes.Buffer
	if err := writeMarkdown(&buf, v.plain); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeMarkdown(out io.Writer, doc *agent.Document) error {
	w := &errWriter{w: out}
	w.println("# " + reportTitle)
	w.println("")

	w.println("## Parser Results")
	if parser := sectionMap(doc, "parser_results"); len(parser) > 0 {
		if msg, ok := parser["error"].(string); ok {
			w.printf("> Error: %s\n", msg)
		}
		w.printf("- **Files analyzed:** %s\n", formatScalar(numberOr(parser["file_count"])))
		w.printf("- **Functions detected:** %s\n", formatScalar(numberOr(parser["function_count"])))
		w.printf("- **Call-graph nodes:** %s\n", formatScalar(numberOr(parser["call_graph_nodes"])))
		w.printf("- **Call-graph edges:** %s\n", formatScalar(numberOr(parser["call_graph_edges"])))
		if summary, _ := parser["gemini_summary"].(string); strings.TrimSpace(summary) != "" {
			w.println("- **Gemini summary:**")
			w.println("")
			for _, line := range strings.Split(strings.TrimSpace(summary), "\n") {
				w.println("  > " + line)
			}
		}
		if msg, ok := parser["summary_error"].(string); ok {
			w.printf("- **Summary unavailable:** %s\n", msg)
		}
	} else {
		w.println("No parser results available.")
	}
	w.println("")

	w.println("## Performance Issues")
	writeIssues(w, sectionMap(doc, "performance_issues"), "No significant performance issues detected.", false)
	w.println("")

	w.println("## Security Findings")
	writeIssues(w, sectionMap(doc, "security_findings"), "No critical security findings detected.", true)

	return w.err
}

func writeIssues(w *errWriter, sec map[string]any, none string, withIssue bool) {
	if msg, ok := sec["error"].(string); ok {
		w.printf("> Error: %s\n", msg)
		return
	}
	issues, _ := sec["issues"].([]any)
	if len(issues) == 0 {
		w.println(none)
		return
	}
	for _, item := range issues {
		f, _ := item.(map[string]any)
		file, _ := f["file"].(string)
		if line, ok := f["line"].(float64); ok && line > 0 {
			file = fmt.Sprintf("%s:%d", file, int(line))
		}
		issue, _ := f["issue"].(string)
		detail, _ := f["detail"].(string)
		sev, _ := f["severity"].(string)
		switch {
		case withIssue && sev != "":
			w.printf("- **%s** %s: %s: %s\n", sev, file, issue, detail)
		case withIssue:
			w.printf("- %s: %s: %s\n", file, issue, detail)
		default:
			w.printf("- %s: %s (%s)\n", file, issue, detail)
		}
	}
}

func sectionMap(doc *agent.Document, key string) map[string]any {
	v, ok := doc.Get(key)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func numberOr(v any) any {
	if v == nil {
		return float64(0)
	}
	return v
}

// proseDump is the page-layout rendering: every section title followed by its
// indented JSON.
func proseDump(doc *agent.Document) (string, error) {
	var b strings.Builder
	b.WriteString("# " + reportTitle + "\n\n")
	for _, key := range doc.Keys() {
		v, _ := doc.Get(key)
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", key, err)
		}
		b.WriteString("## " + sectionTitle(key) + "\n")
		b.Write(raw)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// wrapLine splits line into chunks of at most width runes.
func wrapLine(line string, width int) []string {
	runes := []rune(line)
	if len(runes) <= width {
		return []string{line}
	}
	var chunks []string
	for start := 0; start < len(runes); start += width {
		end := min(start+width, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
