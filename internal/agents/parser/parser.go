// Package parser implements the agent that counts Python files and functions
// and builds a name-only call graph.
package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/gemini"
	"github.com/ppiankov/codespectre/internal/pyast"
	"github.com/ppiankov/codespectre/internal/source"
)

// Name is the agent's key in the result document.
const Name = "parser_results"

// Summarizer produces a natural-language summary of source files.
type Summarizer interface {
	Summarize(ctx context.Context, sources []gemini.Source) gemini.Summary
}

// Agent parses every Python file under the root.
type Agent struct {
	root       agent.Root
	exclude    []string
	summarizer Summarizer
}

// New returns a factory for parser agents. A nil summarizer is reported in the
// result as summary_error.
func New(summarizer Summarizer) agent.Factory {
	return func(root agent.Root, opts agent.Options) agent.Agent {
		return &Agent{
			root:       root,
			exclude:    opts.Strings("exclude_dirs"),
			summarizer: summarizer,
		}
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
	slog.Info("Parsing files", "agent", Name, "files", len(files))

	graph := newCallGraph()
	functions := 0
	parseErrors := 0
	sources := make([]gemini.Source, 0, len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := source.Read(a.root, f)
		if err != nil {
			slog.Debug("Skipping unreadable file", "file", f.Path, "error", err)
			parseErrors++
			continue
		}
		sources = append(sources, gemini.Source{Path: f.Path, Content: content})

		tree, err := pyast.Parse(ctx, content)
		if err != nil {
			parseErrors++
			continue
		}
		if tree.HasError() {
			slog.Debug("Skipping file with syntax errors", "file", f.Path)
			parseErrors++
			tree.Close()
			continue
		}
		for _, fn := range tree.Functions() {
			functions++
			caller := f.Name + ":" + fn.Name
			graph.addNode(caller)
			for _, callee := range fn.Calls {
				graph.addEdge(caller, callee)
			}
		}
		tree.Close()
	}

	result := agent.Result{
		"file_count":       len(files),
		"function_count":   functions,
		"call_graph_nodes": graph.nodeCount(),
		"call_graph_edges": graph.edgeCount(),
		"parse_errors":     parseErrors,
	}

	var summary gemini.Summary
	if a.summarizer != nil {
		summary = a.summarizer.Summarize(ctx, sources)
	} else {
		summary = gemini.Summary{Error: "summarizer not configured"}
	}
	for k, v := range summary.Fields() {
		result[k] = v
	}
	return result, nil
}
