package report

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ppiankov/codespectre/internal/agent"
)

// view carries one document through every format writer. plain is the
// JSON-normalised document every prose writer reads; html is rendered on every
// call and read only by the HTML writer.
type view struct {
	doc      *agent.Document
	plain    *agent.Document
	plainErr error
	html     []byte
}

type formatWriter interface {
	format() Format
	available() error
	render(v *view) ([]byte, error)
}

// Renderer writes a result document to disk in the requested formats.
type Renderer struct {
	fs      afero.Fs
	writers map[Format]formatWriter
	avail   map[Format]error
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFs sets the filesystem artifacts are written to.
func WithFs(fs afero.Fs) Option {
	return func(r *Renderer) { r.fs = fs }
}

// WithDisabled marks formats as unavailable regardless of the build.
func WithDisabled(formats ...Format) Option {
	return func(r *Renderer) {
		for _, f := range formats {
			r.avail[f] = fmt.Errorf("%s: %w", f, ErrBackendUnavailable)
		}
	}
}

// New creates a Renderer and probes which format backends are usable.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		fs:      afero.NewOsFs(),
		writers: make(map[Format]formatWriter),
		avail:   make(map[Format]error),
	}
	for _, w := range []formatWriter{jsonWriter{}, htmlWriter{}, markdownWriter{}, pdfWriter{}, docxWriter{}} {
		r.writers[w.format()] = w
	}
	for _, opt := range opts {
		opt(r)
	}
	for f, w := range r.writers {
		if r.avail[f] != nil {
			continue
		}
		r.avail[f] = w.available()
	}
	return r
}

// Available reports whether f can be written by this renderer.
func (r *Renderer) Available(f Format) bool {
	_, known := r.writers[f]
	return known && r.avail[f] == nil
}

// ValidateFormats checks requested identifiers against SupportedFormats.
// Identifiers are trimmed and deduplicated but matched case-sensitively; an
// empty request selects DefaultFormats.
func ValidateFormats(requested []string) ([]Format, error) {
	var (
		out     []Format
		invalid []string
		seen    = make(map[string]bool)
	)
	for _, raw := range requested {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if !isSupported(Format(name)) {
			invalid = append(invalid, name)
			continue
		}
		out = append(out, Format(name))
	}
	if len(invalid) > 0 {
		return nil, &UnsupportedFormatError{Formats: invalid}
	}
	if len(out) == 0 {
		return append([]Format(nil), DefaultFormats...), nil
	}
	return out, nil
}

func isSupported(f Format) bool {
	for _, s := range SupportedFormats {
		if s == f {
			return true
		}
	}
	return false
}

// Generate writes doc to <base>.<ext> for every requested format and returns
// the paths that were written. Format validation happens before any I/O.
// A failing or unavailable format is logged and skipped; only a JSON failure
// is returned as an error.
func (r *Renderer) Generate(base string, doc *agent.Document, formats []string) ([]string, error) {
	selected, err := ValidateFormats(formats)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = agent.NewDocument()
	}

	v := &view{doc: doc}
	v.plain, v.plainErr = doc.Normalize()
	if html, err := r.writers[FormatHTML].render(v); err != nil {
		slog.Warn("HTML rendering failed", "error", err)
	} else {
		v.html = html
	}

	if dir := filepath.Dir(base); dir != "." {
		if err := r.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}

	var (
		written []string
		jsonErr []error
	)
	for _, f := range selected {
		if err := r.avail[f]; err != nil {
			slog.Warn("Skipping report format", "format", f, "reason", err)
			continue
		}
		path := base + "." + string(f)
		if err := r.writeFormat(path, f, v); err != nil {
			if f == FormatJSON {
				jsonErr = append(jsonErr, err)
				continue
			}
			slog.Warn("Report format failed", "format", f, "error", err)
			continue
		}
		slog.Debug("Report written", "format", f, "path", path)
		written = append(written, path)
	}
	return written, errors.Join(jsonErr...)
}

func (r *Renderer) writeFormat(path string, f Format, v *view) error {
	var (
		body []byte
		err  error
	)
	if f == FormatHTML {
		if v.html == nil {
			return fmt.Errorf("render html: no content")
		}
		body = v.html
	} else {
		body, err = r.writers[f].render(v)
		if err != nil {
			return fmt.Errorf("render %s: %w", f, err)
		}
	}
	return writeAtomic(r.fs, path, body)
}

// writeAtomic writes body to a sibling temp file and renames it over path.
func writeAtomic(fs afero.Fs, path string, body []byte) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := bytes.NewReader(body).WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(name)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := fs.Rename(name, path); err != nil {
		_ = fs.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
