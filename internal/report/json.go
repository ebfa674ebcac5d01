package report

import (
	"encoding/json"
	"fmt"
)

type jsonWriter struct{}

func (jsonWriter) format() Format   { return FormatJSON }
func (jsonWriter) available() error { return nil }

func (jsonWriter) render(v *view) ([]byte, error) {
	out, err := json.MarshalIndent(v.doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode JSON report: %w", err)
	}
	return append(out, '\n'), nil
}
