package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initFlags struct {
	force bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a sample config and .env template",
	Long:  `Creates a sample .codespectre.yaml config file and a .env.example listing the credentials the optional collaborators read.`,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.force, "force", false, "Overwrite existing files")
}

func runInit(_ *cobra.Command, _ []string) error {
	configPath := ".codespectre.yaml"
	envPath := ".env.example"

	if err := writeIfNotExists(configPath, sampleConfig, initFlags.force); err != nil {
		return err
	}
	if err := writeIfNotExists(envPath, sampleEnv, initFlags.force); err != nil {
		return err
	}

	fmt.Printf("Created %s and %s\n", configPath, envPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit .codespectre.yaml to pick formats, excluded directories and thresholds")
	fmt.Println("  2. Copy .env.example to .env and fill in the keys you want to use")
	fmt.Println("  3. Run: codespectre analyze --repo .  OR  codespectre serve")
	return nil
}

func writeIfNotExists(path, content string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Skipping %s (already exists, use --force to overwrite)\n", path)
			return nil
		}
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return os.WriteFile(path, []byte(content), 0o644)
}

const sampleConfig = `# codespectre configuration
# See: https://github.com/ppiankov/codespectre

# Where reports are written and the default base name
report_dir: reports
output: report

# Report formats: json, html, md, pdf, docx
formats:
  - json
  - html

# Analysis timeout
timeout: 10m

# Run up to N agents concurrently (0 runs them in order)
parallel: 0

# Extra directories to skip (.git, .venv, venv, __pycache__, node_modules are always skipped)
# exclude_dirs:
#   - build
#   - migrations

# Files longer than this are reported as large
max_lines: 1000

# Drop security findings below this severity: CRITICAL, HIGH, MEDIUM, LOW
# min_severity: MEDIUM

log:
  level: warn    # debug, info, warn, error
  format: text   # text, json

# Code summary. Set GOOGLE_API_KEY for the Gemini API, or a project for Vertex AI.
gemini:
  # model: gemini-2.0-flash
  # location: us-central1
  max_files: 20

# CVE lookups. Set NVD_API_KEY to enable.
nvd:
  max_results: 3

# Dependency risk analytics
# bigquery:
#   project: my-project-id
#   dataset: security_analytics

# Private package provenance
# artifact_registry:
#   project: my-project-id
#   locations:
#     - us-central1

server:
  addr: ":8000"
  rate_limit: 60
`

const sampleEnv = `# Credentials for optional collaborators. Copy to .env.
GOOGLE_API_KEY=
GOOGLE_CLOUD_PROJECT=
GOOGLE_CLOUD_LOCATION=us-central1
NVD_API_KEY=
REPORT_DIR=reports
LOG_LEVEL=warn
LOG_FORMAT=text
`
