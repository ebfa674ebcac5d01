package commands

import (
	"context"
	"log/slog"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/agents/parser"
	"github.com/ppiankov/codespectre/internal/agents/performance"
	"github.com/ppiankov/codespectre/internal/agents/security"
	"github.com/ppiankov/codespectre/internal/artifactregistry"
	"github.com/ppiankov/codespectre/internal/bigquery"
	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/gemini"
	"github.com/ppiankov/codespectre/internal/nvd"
	"github.com/ppiankov/codespectre/internal/orchestrator"
	"github.com/ppiankov/codespectre/internal/repo"
	"github.com/ppiankov/codespectre/internal/report"
)

// collaborators are the external services handed to the agents for one run.
type collaborators struct {
	summarizer parser.Summarizer
	security   security.Collaborators
	close      func()
}

// pipeline acquires a repository, runs the standard agents and renders reports.
type pipeline struct {
	cfg      config.Config
	acquirer *repo.Acquirer
	renderer orchestrator.Renderer
	parallel int
	keep     bool
	connect  func(ctx context.Context, cfg config.Config) collaborators
}

func newPipeline(c config.Config) *pipeline {
	return &pipeline{
		cfg:      c,
		acquirer: repo.NewAcquirer(),
		renderer: report.New(),
		parallel: c.Parallel,
		connect:  connectCollaborators,
	}
}

// connectCollaborators builds fresh clients so that per-run caches such as
// the CVE memo do not outlive the run.
func connectCollaborators(ctx context.Context, c config.Config) collaborators {
	maxFiles := -1
	if c.Gemini.MaxFiles != nil {
		maxFiles = *c.Gemini.MaxFiles
	}
	summarizer := gemini.New(ctx, gemini.Config{
		APIKey:   c.Gemini.APIKey,
		Project:  c.Gemini.Project,
		Location: c.Gemini.Location,
		Model:    c.Gemini.Model,
		MaxFiles: maxFiles,
	})
	cve := nvd.New(nvd.Config{APIKey: c.NVD.APIKey, BaseURL: c.NVD.BaseURL})
	risk := bigquery.New(ctx, bigquery.Config{Project: c.BigQuery.Project, Dataset: c.BigQuery.Dataset})
	prov := artifactregistry.New(ctx, artifactregistry.Config{
		Project:   c.ArtifactRegistry.Project,
		Locations: c.ArtifactRegistry.Locations,
	})

	return collaborators{
		summarizer: summarizer,
		security:   security.Collaborators{CVE: cve, Risk: risk, Provenance: prov},
		close: func() {
			if err := prov.Close(); err != nil {
				slog.Debug("Failed to close Artifact Registry client", "error", err)
			}
		},
	}
}

func (p *pipeline) agentOptions() agent.Options {
	opts := agent.Options{}
	if len(p.cfg.ExcludeDirs) > 0 {
		opts["exclude_dirs"] = p.cfg.ExcludeDirs
	}
	if p.cfg.MaxLines > 0 {
		opts["max_lines"] = p.cfg.MaxLines
	}
	if p.cfg.MinSeverity != "" {
		opts["min_severity"] = p.cfg.MinSeverity
	}
	if p.cfg.NVD.MaxResults > 0 {
		opts["cve_max_results"] = p.cfg.NVD.MaxResults
	}
	return opts
}

// Analyze validates formats, acquires locator, runs the agents and renders
// reports to base. Setup errors are returned before any agent runs.
func (p *pipeline) Analyze(ctx context.Context, locator, base string, formats []string) (*agent.Document, []string, error) {
	if _, err := report.ValidateFormats(formats); err != nil {
		return nil, nil, err
	}

	checkout, err := p.acquirer.Acquire(ctx, locator)
	if err != nil {
		return nil, nil, err
	}
	if p.keep && checkout.Remote {
		slog.Info("Keeping cloned repository", "path", checkout.Path)
	} else {
		defer func() {
			if err := checkout.Close(); err != nil {
				slog.Warn("Failed to remove clone", "path", checkout.Path, "error", err)
			}
		}()
	}

	collab := p.connect(ctx, p.cfg)
	if collab.close != nil {
		defer collab.close()
	}

	orch := orchestrator.New(agent.NewOsRoot(checkout.Path), p.renderer, orchestrator.WithParallel(p.parallel))
	opts := p.agentOptions()
	orch.Register(parser.New(collab.summarizer), opts)
	orch.Register(security.New(collab.security), opts)
	orch.Register(performance.New, opts)

	slog.Info("Analyzing repository", "path", checkout.Path, "agents", orch.Agents())
	return orch.Run(ctx, base, formats)
}
