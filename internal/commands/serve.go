package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/server"
)

var serveFlags struct {
	addr      string
	reportDir string
	rateLimit int
	timeout   time.Duration
	origins   []string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Start an HTTP service with a one-page web form at / and these endpoints:

  POST /analyze          {"repo_url": "...", "output": "report", "formats": ["json","html"]}
  GET  /healthz          liveness probe
  GET  /download/{file}  fetch a generated report from the report directory

Each request writes its reports under <report-dir>/<uuid>-<output>.<ext>.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", config.DefaultAddr, "Listen address")
	serveCmd.Flags().StringVar(&serveFlags.reportDir, "report-dir", config.DefaultReportDir, "Directory reports are written to and served from")
	serveCmd.Flags().IntVar(&serveFlags.rateLimit, "rate-limit", config.DefaultRateLimit, "Requests per minute per client (0 disables)")
	serveCmd.Flags().DurationVar(&serveFlags.timeout, "timeout", 10*time.Minute, "Per-request analysis timeout")
	serveCmd.Flags().StringSliceVar(&serveFlags.origins, "allowed-origins", nil, "CORS origins (default: any)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	applyServeConfigDefaults(cfg)

	if err := os.MkdirAll(serveFlags.reportDir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	p := newPipeline(cfg)
	srv := server.New(server.Config{
		Addr:           serveFlags.addr,
		ReportDir:      serveFlags.reportDir,
		RateLimit:      serveFlags.rateLimit,
		AllowedOrigins: serveFlags.origins,
		Timeout:        serveFlags.timeout,
	}, p.Analyze)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s listening on %s\n", successStyle.Render("codespectre"), serveFlags.addr)
	return srv.ListenAndServe(ctx)
}

func applyServeConfigDefaults(c config.Config) {
	if serveFlags.addr == config.DefaultAddr && c.Server.Addr != "" {
		serveFlags.addr = c.Server.Addr
	}
	if serveFlags.reportDir == config.DefaultReportDir && c.ReportDir != "" {
		serveFlags.reportDir = c.ReportDir
	}
	if serveFlags.rateLimit == config.DefaultRateLimit && c.Server.RateLimit > 0 {
		serveFlags.rateLimit = c.Server.RateLimit
	}
	if serveFlags.timeout == 10*time.Minute && c.TimeoutDuration() > 0 {
		serveFlags.timeout = c.TimeoutDuration()
	}
	if len(serveFlags.origins) == 0 && len(c.Server.AllowedOrigins) > 0 {
		serveFlags.origins = c.Server.AllowedOrigins
	}
}
