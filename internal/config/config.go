package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither flags nor config set a value.
const (
	DefaultReportDir = "reports"
	DefaultOutput    = "report"
	DefaultAddr      = ":8000"
	DefaultRateLimit = 60
)

// Config holds codespectre configuration loaded from .codespectre.yaml and
// overridden from the environment.
type Config struct {
	ReportDir   string   `yaml:"report_dir"`
	Output      string   `yaml:"output" validate:"omitempty,excludesall=/\\"`
	Formats     []string `yaml:"formats" validate:"dive,oneof=json html md pdf docx"`
	Timeout     string   `yaml:"timeout"`
	Parallel    int      `yaml:"parallel" validate:"gte=0"`
	ExcludeDirs []string `yaml:"exclude_dirs"`
	MaxLines    int      `yaml:"max_lines" validate:"gte=0"`
	MinSeverity string   `yaml:"min_severity" validate:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`

	Log              Log              `yaml:"log"`
	Gemini           Gemini           `yaml:"gemini"`
	NVD              NVD              `yaml:"nvd"`
	BigQuery         BigQuery         `yaml:"bigquery"`
	ArtifactRegistry ArtifactRegistry `yaml:"artifact_registry"`
	Server           Server           `yaml:"server"`
}

// Log selects the slog level and handler.
type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Gemini configures the code summarizer. APIKey selects the Gemini API;
// otherwise Project and Location select Vertex AI.
type Gemini struct {
	APIKey   string `yaml:"api_key"`
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	Model    string `yaml:"model"`
	MaxFiles *int   `yaml:"max_files" validate:"omitempty,gte=0"`
}

// NVD configures the CVE lookup.
type NVD struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
	MaxResults int    `yaml:"max_results" validate:"gte=0"`
}

// BigQuery configures dependency risk analytics.
type BigQuery struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
}

// ArtifactRegistry configures the package provenance check.
type ArtifactRegistry struct {
	Project   string   `yaml:"project"`
	Locations []string `yaml:"locations"`
}

// Server configures the HTTP service.
type Server struct {
	Addr           string   `yaml:"addr"`
	RateLimit      int      `yaml:"rate_limit" validate:"gte=0"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TimeoutDuration parses the timeout string as a duration.
func (c Config) TimeoutDuration() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Load searches for .codespectre.yaml or .codespectre.yml in the given directory
// and returns the parsed config. Returns an empty Config if no file is found.
func Load(dir string) (Config, error) {
	candidates := []string{
		filepath.Join(dir, ".codespectre.yaml"),
		filepath.Join(dir, ".codespectre.yml"),
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		return cfg, nil
	}

	return Config{}, nil
}

// envBindings maps config keys to the environment variables that override
// them, first match wins.
var envBindings = map[string][]string{
	"report_dir":                  {"CODESPECTRE_REPORT_DIR", "REPORT_DIR"},
	"timeout":                     {"CODESPECTRE_TIMEOUT"},
	"min_severity":                {"CODESPECTRE_MIN_SEVERITY"},
	"log.level":                   {"CODESPECTRE_LOG_LEVEL", "LOG_LEVEL"},
	"log.format":                  {"CODESPECTRE_LOG_FORMAT", "LOG_FORMAT"},
	"gemini.api_key":              {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"gemini.project":              {"GOOGLE_CLOUD_PROJECT"},
	"gemini.location":             {"GOOGLE_CLOUD_LOCATION"},
	"gemini.model":                {"GEMINI_MODEL"},
	"gemini.max_files":            {"GEMINI_MAX_FILES"},
	"nvd.api_key":                 {"NVD_API_KEY"},
	"bigquery.project":            {"BIGQUERY_PROJECT", "GOOGLE_CLOUD_PROJECT"},
	"bigquery.dataset":            {"BIGQUERY_DATASET"},
	"artifact_registry.project":   {"CODESPECTRE_AR_PROJECT", "GOOGLE_CLOUD_PROJECT"},
	"artifact_registry.locations": {"CODESPECTRE_AR_LOCATIONS"},
	"server.addr":                 {"CODESPECTRE_ADDR"},
	"server.rate_limit":           {"RATE_LIMIT_PER_MINUTE"},
}

// ApplyEnv overrides cfg with any bound environment variable that is set.
func ApplyEnv(cfg *Config) {
	v := viper.New()
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setList := func(key string, dst *[]string) {
		if v.IsSet(key) {
			*dst = splitList(v.GetString(key))
		}
	}

	setString("report_dir", &cfg.ReportDir)
	setString("timeout", &cfg.Timeout)
	setString("min_severity", &cfg.MinSeverity)
	setString("log.level", &cfg.Log.Level)
	setString("log.format", &cfg.Log.Format)
	setString("gemini.api_key", &cfg.Gemini.APIKey)
	setString("gemini.project", &cfg.Gemini.Project)
	setString("gemini.location", &cfg.Gemini.Location)
	setString("gemini.model", &cfg.Gemini.Model)
	if v.IsSet("gemini.max_files") {
		n := v.GetInt("gemini.max_files")
		cfg.Gemini.MaxFiles = &n
	}
	setString("nvd.api_key", &cfg.NVD.APIKey)
	setString("bigquery.project", &cfg.BigQuery.Project)
	setString("bigquery.dataset", &cfg.BigQuery.Dataset)
	setString("artifact_registry.project", &cfg.ArtifactRegistry.Project)
	setList("artifact_registry.locations", &cfg.ArtifactRegistry.Locations)
	setString("server.addr", &cfg.Server.Addr)
	setInt("server.rate_limit", &cfg.Server.RateLimit)

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.MinSeverity = strings.ToUpper(cfg.MinSeverity)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New()

// Validate checks field constraints and returns one error per violation.
func (c Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, e := range verrs {
			errs = append(errs, fmt.Errorf("invalid config field %s: rule %q (value: %v)", e.Namespace(), e.Tag(), e.Value()))
		}
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("invalid config field Config.Timeout: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Resolve loads the config file from dir, applies environment overrides
// and validates the result.
func Resolve(dir string) (Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		return Config{}, err
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
