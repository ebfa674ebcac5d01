// Package orchestrator runs registered analysis agents against one repository
// and hands the merged document to the report renderer.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/report"
)

// Renderer writes a result document in the requested formats.
type Renderer interface {
	Generate(base string, doc *agent.Document, formats []string) ([]string, error)
}

// Orchestrator holds the ordered list of agents for one repository root.
type Orchestrator struct {
	root     agent.Root
	renderer Renderer
	agents   []agent.Agent
	parallel int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithParallel runs up to n agents at once. n <= 1 keeps sequential execution.
// The merged document is identical to a sequential run.
func WithParallel(n int) Option {
	return func(o *Orchestrator) { o.parallel = n }
}

// New creates an orchestrator for root that renders through renderer.
func New(root agent.Root, renderer Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{root: root, renderer: renderer}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register instantiates an agent from factory and appends it. Registration
// order is execution order and key order in the merged document.
func (o *Orchestrator) Register(factory agent.Factory, opts agent.Options) {
	if opts == nil {
		opts = agent.Options{}
	}
	o.agents = append(o.agents, factory(o.root, opts))
}

// Agents returns the names of the registered agents in order.
func (o *Orchestrator) Agents() []string {
	names := make([]string, len(o.agents))
	for i, a := range o.agents {
		names[i] = a.Name()
	}
	return names
}

// Run validates formats, executes every agent, then renders the merged
// document once. An agent that fails or panics is recorded as
// {"error": "..."} under its own name. The returned error is non-nil only
// for invalid formats or a failed JSON artifact; in the latter case the
// document is still returned.
func (o *Orchestrator) Run(ctx context.Context, base string, formats []string) (*agent.Document, []string, error) {
	if _, err := report.ValidateFormats(formats); err != nil {
		return nil, nil, err
	}

	results := make([]agent.Result, len(o.agents))
	if o.parallel > 1 && len(o.agents) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.parallel)
		for i, a := range o.agents {
			g.Go(func() error {
				results[i] = runAgent(gctx, a)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, a := range o.agents {
			results[i] = runAgent(ctx, a)
		}
	}

	doc := agent.NewDocument()
	for i, a := range o.agents {
		doc.Set(a.Name(), results[i])
	}

	written, err := o.renderer.Generate(base, doc, formats)
	if err != nil {
		return doc, written, fmt.Errorf("render report: %w", err)
	}
	return doc, written, nil
}

func runAgent(ctx context.Context, a agent.Agent) (res agent.Result) {
	name := a.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Agent panicked", "agent", name, "panic", r, "stack", string(debug.Stack()))
			res = agent.ErrorResult(fmt.Sprintf("panic: %v", r))
		}
	}()

	slog.Info("Running agent", "agent", name)
	out, err := a.Run(ctx)
	if err != nil {
		slog.Warn("Agent failed", "agent", name, "error", err)
		return agent.ErrorResult(err.Error())
	}
	if out == nil {
		out = agent.Result{}
	}
	slog.Debug("Agent finished", "agent", name, "elapsed", time.Since(start))
	return out
}
