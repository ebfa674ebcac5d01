package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/goleak"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/repo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type runCall struct {
	locator string
	base    string
	formats []string
}

type runRecorder struct {
	mu    sync.Mutex
	calls []runCall
}

func (r *runRecorder) snapshot() []runCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runCall(nil), r.calls...)
}

func stubRun(rec *runRecorder, err error) RunFunc {
	return func(_ context.Context, locator, base string, formats []string) (*agent.Document, []string, error) {
		rec.mu.Lock()
		rec.calls = append(rec.calls, runCall{locator, base, formats})
		rec.mu.Unlock()
		if err != nil {
			return nil, nil, err
		}
		doc := agent.NewDocument()
		doc.Set("parser_results", agent.Result{"file_count": 1})
		return doc, []string{base + ".json"}, nil
	}
}

func newTestServer(t *testing.T, cfg Config, run RunFunc) *httptest.Server {
	t.Helper()
	s := New(cfg, run)
	s.newID = func() string { return "fixed-id" }
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		http.DefaultClient.CloseIdleConnections()
	})
	return ts
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("missing CSP")
	}
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	for _, want := range []string{`<form id="analyze">`, `name="repo_url"`, `src="/static/app.js"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("index missing %q", want)
		}
	}

	js, err := http.Get(ts.URL + "/static/app.js")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = js.Body.Close() }()
	script, _ := io.ReadAll(js.Body)
	if js.StatusCode != http.StatusOK || !strings.Contains(string(script), `fetch("/analyze"`) {
		t.Errorf("app.js = %d, posts to /analyze: %v", js.StatusCode, strings.Contains(string(script), "/analyze"))
	}

	missing, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	_ = missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", missing.StatusCode)
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	rec := &runRecorder{}
	ts := newTestServer(t, Config{ReportDir: "out"}, stubRun(rec, nil))

	resp, body := post(t, ts.URL+"/analyze", `{"repo_url":"https://example.com/r.git","output":"audit","formats":"json, md"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("run calls = %d", len(calls))
	}
	if calls[0].base != filepath.Join("out", "fixed-id-audit") {
		t.Errorf("base = %q", calls[0].base)
	}
	if strings.Join(calls[0].formats, ",") != "json,md" {
		t.Errorf("formats = %v", calls[0].formats)
	}
	results, _ := body["results"].(map[string]any)
	if _, ok := results["parser_results"]; !ok {
		t.Errorf("results = %v", body["results"])
	}
	downloads, _ := body["downloads"].([]any)
	if len(downloads) != 1 || downloads[0] != "/download/fixed-id-audit.json" {
		t.Errorf("downloads = %v", body["downloads"])
	}
}

func TestAnalyzeDefaultOutputAndListFormats(t *testing.T) {
	rec := &runRecorder{}
	ts := newTestServer(t, Config{ReportDir: "out"}, stubRun(rec, nil))

	resp, _ := post(t, ts.URL+"/analyze", `{"repo_url":"/src/app","formats":["html"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	calls := rec.snapshot()
	if calls[0].base != filepath.Join("out", "fixed-id-report") {
		t.Errorf("base = %q", calls[0].base)
	}
	if strings.Join(calls[0].formats, ",") != "html" {
		t.Errorf("formats = %v", calls[0].formats)
	}
}

func TestAnalyzeBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		runErr error
		want   string
	}{
		{"missing repo", `{}`, nil, "repo_url is required"},
		{"malformed json", `{"repo_url":`, nil, "invalid request body"},
		{"bad formats", `{"repo_url":"https://x/y","formats":["invalid_format"]}`, nil, "invalid_format"},
		{"output traversal", `{"repo_url":"https://x/y","output":"../etc"}`, nil, "output must be"},
		{"unsupported protocol", `{"repo_url":"ftp://x/y"}`, fmt.Errorf("%w: ftp", repo.ErrUnsupportedProtocol), "unsupported repository protocol"},
		{"clone failed", `{"repo_url":"https://x/y"}`, fmt.Errorf("%w: exit 128", repo.ErrCloneFailed), "failed to clone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &runRecorder{}
			ts := newTestServer(t, Config{}, stubRun(rec, tt.runErr))

			resp, body := post(t, ts.URL+"/analyze", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			msg, _ := body["error"].(string)
			if !strings.Contains(msg, tt.want) {
				t.Errorf("error = %q, want %q", msg, tt.want)
			}
			if tt.runErr == nil && len(rec.snapshot()) != 0 {
				t.Error("pipeline ran for an invalid request")
			}
		})
	}
}

func TestAnalyzeInternalError(t *testing.T) {
	ts := newTestServer(t, Config{}, stubRun(&runRecorder{}, fmt.Errorf("boom")))

	resp, _ := post(t, ts.URL+"/analyze", `{"repo_url":"https://x/y"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestDownload(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, filepath.Join("reports", "abc-report.json"), []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "secret.txt", []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, Config{ReportDir: "reports", FS: fs}, nil)

	resp, err := http.Get(ts.URL + "/download/abc-report.json")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != `{"a":1}` {
		t.Errorf("download = %d %q", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "abc-report.json") {
		t.Error("missing Content-Disposition")
	}

	for _, p := range []string{"/download/missing.json", "/download/..%2Fsecret.txt", "/download/%2e%2e"} {
		resp, err := http.Get(ts.URL + p)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", p, resp.StatusCode)
		}
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, Config{RateLimit: 2}, nil)

	codes := make([]int, 0, 3)
	for range 3 {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, Config{AllowedOrigins: []string{"https://ui.example"}}, nil)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/analyze", nil)
	req.Header.Set("Origin", "https://ui.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://ui.example" {
		t.Errorf("allow-origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestFormatListUnmarshal(t *testing.T) {
	var f FormatList
	if err := json.Unmarshal([]byte(`"json, ,pdf"`), &f); err != nil {
		t.Fatal(err)
	}
	if strings.Join(f, ",") != "json,pdf" {
		t.Errorf("got %v", f)
	}
	if err := json.Unmarshal([]byte(`42`), &f); err == nil {
		t.Error("expected error for numeric formats")
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe() = %v", err)
	}
}
