//go:build !nopdf

package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

const pdfWrapWidth = 80

type pdfWriter struct{}

func (pdfWriter) format() Format   { return FormatPDF }
func (pdfWriter) available() error { return nil }

func (pdfWriter) render(v *view) ([]byte, error) {
	if v.plainErr != nil {
		return nil, v.plainErr
	}
	text, err := proseDump(v.plain)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(reportTitle, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pdf.SetFont("Courier", "", 8)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, line := range strings.Split(text, "\n") {
		for _, chunk := range wrapLine(line, pdfWrapWidth) {
			pdf.MultiCell(0, 5, tr(chunk), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
