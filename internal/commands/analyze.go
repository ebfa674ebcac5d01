package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ppiankov/codespectre/internal/agent"
	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/repo"
	"github.com/ppiankov/codespectre/internal/report"
)

var analyzeFlags struct {
	repo      string
	output    string
	formats   []string
	reportDir string
	clean     bool
	noClean   bool
	parallel  int
	timeout   time.Duration
	sarif     string
	print     bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a Python repository and write reports",
	Long: `Run the parser, security and performance agents over a local directory or a
remote git repository and write the merged results to <report-dir>/<output>.<ext>
for every requested format.

Formats that cannot be rendered (for example a PDF backend left out of the
build) are skipped with a warning; the run still succeeds.`,
	Example: `  codespectre analyze --repo .
  codespectre analyze --repo https://github.com/org/app.git --formats json,md,pdf
  codespectre analyze --repo ~/src/app --sarif findings.sarif --print`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFlags.repo, "repo", "", "Local path or git URL (https://, http://, git@) of the repository (required)")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.output, "output", "o", config.DefaultOutput, "Report base name")
	analyzeCmd.Flags().StringSliceVar(&analyzeFlags.formats, "formats", nil, "Report formats: json, html, md, pdf, docx (default json,html)")
	analyzeCmd.Flags().StringVar(&analyzeFlags.reportDir, "report-dir", config.DefaultReportDir, "Directory reports are written to")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.clean, "clean", true, "Remove the temporary clone after analysis")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.noClean, "no-clean", false, "Keep the temporary clone after analysis")
	analyzeCmd.Flags().IntVar(&analyzeFlags.parallel, "parallel", 0, "Run up to N agents concurrently (0 or 1 runs them in order)")
	analyzeCmd.Flags().DurationVar(&analyzeFlags.timeout, "timeout", 10*time.Minute, "Analysis timeout")
	analyzeCmd.Flags().StringVar(&analyzeFlags.sarif, "sarif", "", "Also write findings as SARIF to this file")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.print, "print", false, "Print the Markdown report to stdout")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if analyzeFlags.repo == "" {
		return enhanceError("analyze", repo.ErrEmptyLocator)
	}

	applyAnalyzeConfigDefaults(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if analyzeFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, analyzeFlags.timeout)
		defer cancel()
	}

	formats := splitFormats(analyzeFlags.formats)
	if _, err := report.ValidateFormats(formats); err != nil {
		return enhanceError("validate formats", err)
	}

	base := reportBase(analyzeFlags.reportDir, analyzeFlags.output)

	runCfg := cfg
	runCfg.Parallel = analyzeFlags.parallel
	p := newPipeline(runCfg)
	p.keep = analyzeFlags.noClean || !analyzeFlags.clean

	doc, written, err := p.Analyze(ctx, analyzeFlags.repo, base, formats)
	if doc == nil {
		return enhanceError("analyze repository", err)
	}
	if err != nil {
		slog.Error("Report rendering failed", "error", err)
	}

	return finishAnalyze(cmd.OutOrStdout(), doc, written, err)
}

// finishAnalyze prints the outcome of a run: artifacts, findings summary and
// the optional SARIF and Markdown outputs.
func finishAnalyze(out io.Writer, doc *agent.Document, written []string, renderErr error) error {
	printWritten(out, written)

	data, err := report.NewData(doc, "codespectre", version, report.Target{
		Type:    targetType(analyzeFlags.repo),
		URIHash: computeTargetHash(analyzeFlags.repo),
	})
	if err != nil {
		return fmt.Errorf("summarize results: %w", err)
	}

	_, _ = fmt.Fprintln(out)
	reporter := &report.TextReporter{Writer: out}
	if err := reporter.Generate(data); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if analyzeFlags.sarif != "" {
		if err := writeSARIF(analyzeFlags.sarif, data); err != nil {
			return err
		}
		slog.Info("SARIF written", "path", analyzeFlags.sarif)
	}

	if analyzeFlags.print {
		if err := printMarkdown(out, doc); err != nil {
			return err
		}
	}
	return renderErr
}

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func printWritten(out io.Writer, written []string) {
	if len(written) == 0 {
		_, _ = fmt.Fprintln(out, warnStyle.Render("WARNING")+" no report files were written")
		return
	}
	_, _ = fmt.Fprintf(out, "%s analysis complete, %d report file(s) written\n", successStyle.Render("SUCCESS"), len(written))
	for _, p := range written {
		_, _ = fmt.Fprintln(out, "  "+pathStyle.Render(p))
	}
}

func writeSARIF(path string, data report.Data) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create SARIF file: %w", err)
	}
	r := &report.SARIFReporter{Writer: f}
	if err := r.Generate(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// printMarkdown renders the prose report, styled when stdout is a terminal.
func printMarkdown(out io.Writer, doc *agent.Document) error {
	md, err := report.Markdown(doc)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width := 100
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w - 2
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err == nil {
			if styled, err := r.Render(string(md)); err == nil {
				_, err = io.WriteString(out, styled)
				return err
			}
		}
	}
	_, err = out.Write(md)
	return err
}

func reportBase(dir, output string) string {
	if output == "" {
		output = config.DefaultOutput
	}
	if filepath.IsAbs(output) || filepath.Dir(output) != "." {
		return output
	}
	return filepath.Join(dir, output)
}

func targetType(locator string) string {
	if repo.IsRemote(locator) {
		return "git"
	}
	return "local"
}

// applyAnalyzeConfigDefaults fills flags left at their defaults from the
// config file. Explicit flags always win.
func applyAnalyzeConfigDefaults(c config.Config) {
	if analyzeFlags.output == config.DefaultOutput && c.Output != "" {
		analyzeFlags.output = c.Output
	}
	if len(analyzeFlags.formats) == 0 && len(c.Formats) > 0 {
		analyzeFlags.formats = c.Formats
	}
	if analyzeFlags.reportDir == config.DefaultReportDir && c.ReportDir != "" {
		analyzeFlags.reportDir = c.ReportDir
	}
	if analyzeFlags.parallel == 0 && c.Parallel > 0 {
		analyzeFlags.parallel = c.Parallel
	}
	if analyzeFlags.timeout == 10*time.Minute && c.TimeoutDuration() > 0 {
		analyzeFlags.timeout = c.TimeoutDuration()
	}
}
