//go:build nopdf

package report

type pdfWriter struct{}

func (pdfWriter) format() Format   { return FormatPDF }
func (pdfWriter) available() error { return ErrBackendUnavailable }

func (pdfWriter) render(*view) ([]byte, error) {
	return nil, ErrBackendUnavailable
}
