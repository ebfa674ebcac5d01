//go:build !nodocx

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

type docxWriter struct{}

func (docxWriter) format() Format   { return FormatDOCX }
func (docxWriter) available() error { return nil }

func (docxWriter) render(v *view) ([]byte, error) {
	if v.plainErr != nil {
		return nil, v.plainErr
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if _, err := doc.AddHeading(reportTitle, 1); err != nil {
		return nil, err
	}
	for _, key := range v.plain.Keys() {
		value, _ := v.plain.Get(key)
		raw, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		if _, err := doc.AddHeading(sectionTitle(key), 2); err != nil {
			return nil, err
		}
		addLines(doc.AddEmptyParagraph(), string(raw))
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	return buf.Bytes(), nil
}

// addLines fills p with text, one run per line with a break after every line
// but the last.
func addLines(p *docx.Paragraph, text string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		run := p.AddText(line)
		if i < len(lines)-1 {
			run.AddBreak(nil)
		}
	}
}
