// Package performance implements the agent that flags oversized files and
// nested for-loops.
package performance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/pyast"
	"github.com/ppiankov/codespectre/internal/source"
)

const (
	// Name is the agent's key in the result document.
	Name = "performance_issues"

	// DefaultMaxLines is the line count above which a file is reported as large.
	DefaultMaxLines = 1000

	IssueLargeFile   = "Large file"
	IssueNestedLoops = "Nested loops"
)

// Agent scans Python files for performance smells.
type Agent struct {
	root     agent.Root
	exclude  []string
	maxLines int
}

// New is the agent.Factory for performance agents. Recognised options:
// "max_lines" and "exclude_dirs".
func New(root agent.Root, opts agent.Options) agent.Agent {
	return &Agent{
		root:     root,
		exclude:  opts.Strings("exclude_dirs"),
		maxLines: opts.Int("max_lines", DefaultMaxLines),
	}
}

// Name implements agent.Agent.
func (a *Agent) Name() string { return Name }

// Run implements agent.Agent.
func (a *Agent) Run(ctx context.Context) (agent.Result, error) {
	files, err := source.PythonFiles(a.root, a.exclude...)
	if err != nil {
		return nil, fmt.Errorf("list python files: %w", err)
	}
	slog.Info("Detecting bottlenecks", "agent", Name, "files", len(files))

	issues := make([]agent.Finding, 0)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := source.Read(a.root, f)
		if err != nil {
			slog.Debug("Skipping unreadable file", "file", f.Path, "error", err)
			continue
		}

		if lines := source.CountLines(content); lines > a.maxLines {
			issues = append(issues, agent.Finding{
				File:   f.Path,
				Issue:  IssueLargeFile,
				Detail: fmt.Sprintf("%d lines (>%d)", lines, a.maxLines),
			})
		}

		tree, err := pyast.Parse(ctx, content)
		if err != nil {
			continue
		}
		if !tree.HasError() {
			if n := tree.NestedLoops(); n > 0 {
				issues = append(issues, agent.Finding{
					File:   f.Path,
					Issue:  IssueNestedLoops,
					Detail: fmt.Sprintf("%d nested loops detected", n),
				})
			}
		}
		tree.Close()
	}

	return agent.Result{"count": len(issues), "issues": issues}, nil
}
