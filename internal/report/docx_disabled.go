//go:build nodocx

package report

type docxWriter struct{}

func (docxWriter) format() Format   { return FormatDOCX }
func (docxWriter) available() error { return ErrBackendUnavailable }

func (docxWriter) render(*view) ([]byte, error) {
	return nil, ErrBackendUnavailable
}
