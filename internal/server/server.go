// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/repo"
	"github.com/ppiankov/codespectre/internal/report"
)

// RunFunc analyses the repository at locator and writes reports to base.
type RunFunc func(ctx context.Context, locator, base string, formats []string) (*agent.Document, []string, error)

// Config holds server settings.
type Config struct {
	Addr           string
	ReportDir      string
	RateLimit      int // requests per minute per client; 0 disables limiting
	AllowedOrigins []string
	Timeout        time.Duration
	FS             afero.Fs // report directory filesystem, OS by default
}

// Server is the HTTP front end.
type Server struct {
	cfg      Config
	run      RunFunc
	validate *validator.Validate
	limiter  *clientLimiter
	newID    func() string
}

// New creates a server that delegates analysis to run.
func New(cfg Config, run RunFunc) *Server {
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = "reports"
	}
	s := &Server{
		cfg:      cfg,
		run:      run,
		validate: validator.New(),
		newID:    uuid.NewString,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit)
	}
	return s
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	RepoURL string     `json:"repo_url" validate:"required"`
	Output  string     `json:"output" validate:"omitempty,max=128,excludesall=/\\"`
	Formats FormatList `json:"formats"`
}

// AnalyzeResponse is the body of a successful POST /analyze.
type AnalyzeResponse struct {
	Results     *agent.Document `json:"results"`
	ReportFiles []string        `json:"report_files"`
	Downloads   []string        `json:"downloads"`
}

// FormatList accepts either a JSON array or a comma-separated string.
type FormatList []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FormatList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("formats must be a list or a comma-separated string")
	}
	*f = nil
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			*f = append(*f, p)
		}
	}
	return nil
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /static/", staticHandler())
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /download/{file}", s.handleDownload)

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	h = corsMiddleware(s.cfg.AllowedOrigins, h)
	return securityHeaders(h)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	req.RepoURL = strings.TrimSpace(req.RepoURL)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if _, err := report.ValidateFormats(req.Formats); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	output := req.Output
	if output == "" {
		output = "report"
	}
	name := s.newID() + "-" + output
	base := filepath.Join(s.cfg.ReportDir, name)

	ctx := r.Context()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	slog.Info("Analysis requested", "repo", req.RepoURL, "base", base)
	doc, written, err := s.run(ctx, req.RepoURL, base, req.Formats)
	if err != nil && doc == nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err != nil {
		slog.Warn("Report rendering incomplete", "error", err)
	}

	resp := AnalyzeResponse{Results: doc, ReportFiles: written, Downloads: make([]string, 0, len(written))}
	if resp.ReportFiles == nil {
		resp.ReportFiles = []string{}
	}
	for _, p := range written {
		resp.Downloads = append(resp.Downloads, "/download/"+filepath.Base(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(s.cfg.ReportDir, name)
	f, err := s.cfg.FS.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// statusFor maps setup errors to 400 and anything else to 500.
func statusFor(err error) int {
	var ufe *report.UnsupportedFormatError
	switch {
	case errors.As(err, &ufe),
		errors.Is(err, repo.ErrEmptyLocator),
		errors.Is(err, repo.ErrUnsupportedProtocol),
		errors.Is(err, repo.ErrCloneFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Field() {
		case "RepoURL":
			msgs = append(msgs, "repo_url is required")
		case "Output":
			msgs = append(msgs, "output must be a plain file name of at most 128 characters")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Field(), e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
