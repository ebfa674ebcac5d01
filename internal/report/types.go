package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/analyzer"
)

// Format is a report artifact format, also used as the file extension.
type Format string

const (
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// SupportedFormats is the closed vocabulary accepted by Generate.
var SupportedFormats = []Format{FormatJSON, FormatHTML, FormatMarkdown, FormatPDF, FormatDOCX}

// DefaultFormats is used when no format is requested.
var DefaultFormats = []Format{FormatJSON, FormatHTML}

// ErrBackendUnavailable marks a format whose rendering backend is missing from
// this build or disabled.
var ErrBackendUnavailable = errors.New("report backend unavailable")

// UnsupportedFormatError is returned when a request names formats outside
// SupportedFormats. No artifact is written in that case.
type UnsupportedFormatError struct {
	Formats []string
}

func (e *UnsupportedFormatError) Error() string {
	supported := make([]string, len(SupportedFormats))
	for i, f := range SupportedFormats {
		supported[i] = string(f)
	}
	return fmt.Sprintf("unsupported report format(s): %s. Supported formats are: %s",
		strings.Join(e.Formats, ", "), strings.Join(supported, ", "))
}

// Reporter is the interface for terminal and CI formatters that work on the
// flattened findings rather than on the whole document.
type Reporter interface {
	Generate(data Data) error
}

// Finding is an agent finding tagged with the agent that produced it.
type Finding struct {
	Unit string `json:"unit"`
	agent.Finding
}

// Data holds the flattened view of a result document.
type Data struct {
	Tool      string           `json:"tool"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Target    Target           `json:"target"`
	Findings  []Finding        `json:"findings"`
	Summary   analyzer.Summary `json:"summary"`
	Errors    []string         `json:"errors,omitempty"`
}

// Target identifies the analysed repository without exposing its locator.
type Target struct {
	Type    string `json:"type"`
	URIHash string `json:"uri_hash"`
}

// TextReporter generates human-readable terminal output.
type TextReporter struct {
	Writer io.Writer
}

// SARIFReporter generates SARIF v2.1.0 output.
type SARIFReporter struct {
	Writer io.Writer
}
