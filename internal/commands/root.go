package commands

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/logging"
)

var (
	verbose bool
	version string
	commit  string
	date    string

	// cfg is resolved once per invocation in PersistentPreRun.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codespectre",
	Short: "codespectre — Python codebase analyzer",
	Long: `codespectre runs a set of analysis agents over a Python repository (call graph,
insecure imports and patterns, performance hot spots) and writes the merged
results as JSON, HTML, Markdown, PDF or DOCX reports.

Optional collaborators add a Gemini code summary, NVD CVE matches, BigQuery
dependency risk scores and Artifact Registry package provenance.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to load .env file", "error", err)
		}
		cfg = loadConfig(".")
		logging.Setup(logging.Options{
			Verbose: verbose,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
		})
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with injected build info.
func Execute(v, c, d string) error {
	version = v
	commit = c
	date = d
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the config file and environment. An invalid file is
// reported and ignored so that env-only settings still apply.
func loadConfig(dir string) config.Config {
	c, err := config.Resolve(dir)
	if err == nil {
		return c
	}
	slog.Warn("Failed to load config file", "error", err)
	c = config.Config{}
	config.ApplyEnv(&c)
	return c
}
