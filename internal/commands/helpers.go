package commands

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/codespectre/internal/repo"
	"github.com/ppiankov/codespectre/internal/report"
)

// enhanceError wraps an error with context and suggestions for common setup issues.
func enhanceError(action string, err error) error {
	msg := err.Error()

	var hint string
	var ufe *report.UnsupportedFormatError
	switch {
	case errors.As(err, &ufe):
		hint = "Pass a comma-separated subset of: json, html, md, pdf, docx"
	case errors.Is(err, repo.ErrEmptyLocator):
		hint = "Pass --repo with a local directory or a git URL"
	case errors.Is(err, repo.ErrUnsupportedProtocol):
		hint = "Use an existing directory or a URL starting with https://, http:// or git@"
	case strings.Contains(msg, "executable file not found"):
		hint = "Install git and make sure it is on PATH"
	case strings.Contains(msg, "Authentication failed") || strings.Contains(msg, "could not read Username"):
		hint = "Repository requires credentials. Configure a git credential helper or use an SSH URL"
	case errors.Is(err, repo.ErrCloneFailed):
		hint = "Check the repository URL and your network access"
	case strings.Contains(msg, "context deadline exceeded"):
		hint = "Analysis timed out. Increase --timeout"
	case strings.Contains(msg, "could not find default credentials"):
		hint = "Configure GCP credentials: run 'gcloud auth application-default login'"
	}

	if hint != "" {
		return fmt.Errorf("%s: %w\n  hint: %s", action, err, hint)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// computeTargetHash generates a SHA256 hash for the repository locator so that
// reports can identify a target without exposing it.
func computeTargetHash(locator string) string {
	h := sha256.Sum256([]byte("repo:" + strings.TrimSpace(locator)))
	return fmt.Sprintf("sha256:%x", h)
}

// splitFormats turns "json, html" and repeated flags into one list.
func splitFormats(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
