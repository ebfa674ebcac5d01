// Package gemini produces a natural-language summary of a code sample using
// Gemini, through either the Gemini API or Vertex AI.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultModel    = "gemini-2.5-flash"
	DefaultLocation = "us-central1"
	DefaultMaxFiles = 20

	msgNoFiles    = "No Python files found to analyze."
	msgEmptyFiles = "Python files were empty; nothing to analyze."

	promptHeader = "Summarize the purpose, structure and notable risks of the following Python code.\n\n"
)

// ErrNotConfigured is reported when neither an API key nor a project is set.
var ErrNotConfigured = errors.New("gemini credentials not configured: set GOOGLE_API_KEY or GOOGLE_CLOUD_PROJECT")

// Config selects the backend and sampling behaviour.
type Config struct {
	// APIKey selects the Gemini API backend and wins over Project.
	APIKey string
	// Project and Location select the Vertex AI backend.
	Project  string
	Location string
	Model    string
	// MaxFiles caps the number of files sent. 0 sends every file.
	MaxFiles int
	// MaxAttempts bounds retries of the generate call. Defaults to 3.
	MaxAttempts int
	// Backoff is the wait before the first retry; it doubles after each failure.
	Backoff time.Duration
}

// Source is one file offered for summarisation.
type Source struct {
	Path    string
	Content []byte
}

// Summary is the summarizer's contribution to the parser results.
type Summary struct {
	Text  string
	Files int
	Error string
}

// Fields returns the summary as result keys.
func (s Summary) Fields() map[string]any {
	out := make(map[string]any, 3)
	if s.Text != "" {
		out["gemini_summary"] = s.Text
	}
	if s.Files > 0 {
		out["summary_files"] = s.Files
	}
	if s.Error != "" {
		out["summary_error"] = s.Error
	}
	return out
}

// Generator sends one prompt to a model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client summarises code. It is safe to use when misconfigured; the failure is
// reported in every Summary instead.
type Client struct {
	gen     Generator
	cfg     Config
	initErr error
}

// New builds a Client for the backend selected by cfg.
func New(ctx context.Context, cfg Config) *Client {
	cfg = withDefaults(cfg)

	var cc *genai.ClientConfig
	switch {
	case cfg.APIKey != "":
		slog.Debug("Using Gemini API backend")
		cc = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	case cfg.Project != "":
		slog.Debug("Using Vertex AI backend", "project", cfg.Project, "location", cfg.Location)
		cc = &genai.ClientConfig{Project: cfg.Project, Location: cfg.Location, Backend: genai.BackendVertexAI}
	default:
		return &Client{cfg: cfg, initErr: ErrNotConfigured}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return &Client{cfg: cfg, initErr: fmt.Errorf("create genai client: %w", err)}
	}
	return &Client{gen: &genaiGenerator{client: client, model: cfg.Model}, cfg: cfg}
}

// NewWithGenerator builds a Client around an existing Generator.
func NewWithGenerator(gen Generator, cfg Config) *Client {
	return &Client{gen: gen, cfg: withDefaults(cfg)}
}

func withDefaults(cfg Config) Config {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Location == "" {
		cfg.Location = DefaultLocation
	}
	if cfg.MaxFiles < 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return cfg
}

// Summarize samples sources and asks the model for a summary.
func (c *Client) Summarize(ctx context.Context, sources []Source) Summary {
	if len(sources) == 0 {
		return Summary{Text: msgNoFiles}
	}

	sample := sources
	if c.cfg.MaxFiles > 0 && len(sample) > c.cfg.MaxFiles {
		sample = sample[:c.cfg.MaxFiles]
	}
	parts := make([]string, 0, len(sample))
	for _, s := range sample {
		parts = append(parts, string(s.Content))
	}
	content := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if content == "" {
		return Summary{Text: msgEmptyFiles}
	}

	if c.initErr != nil {
		return Summary{Files: len(sample), Error: c.initErr.Error()}
	}

	text, err := c.generate(ctx, promptHeader+content)
	if err != nil {
		slog.Warn("Gemini summary failed", "error", err)
		return Summary{Files: len(sample), Error: err.Error()}
	}
	return Summary{Text: text, Files: len(sample)}
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	wait := c.cfg.Backoff
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		text, err := c.gen.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}
		slog.Debug("Retrying Gemini request", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return "", fmt.Errorf("gemini request failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
