// Package config loads codenotate settings from YAML, .env and the
// environment, and hands each component only its own section.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/codenotate/internal/annotator"
	"github.com/dshills/codenotate/internal/assembler"
	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/chunker"
	"github.com/dshills/codenotate/internal/extractor"
	"github.com/dshills/codenotate/internal/logging"
	"github.com/dshills/codenotate/internal/pipeline"
	"github.com/dshills/codenotate/internal/sink"
	"github.com/dshills/codenotate/internal/source"
	"github.com/dshills/codenotate/internal/validator"
)

// DefaultFileName is looked up in the working directory when no path is given
const DefaultFileName = "codenotate.yaml"

// Environment overrides
const (
	EnvLanguage = "CODENOTATE_LANGUAGE"
	EnvDBPath   = "CODENOTATE_DB_PATH"
	EnvLogLevel = "CODENOTATE_LOG_LEVEL"
)

// Config holds all codenotate configuration.
type Config struct {
	// Default language policy; empty selects by file extension
	Language string `yaml:"language"`

	Backend    BackendConfig    `yaml:"backend"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Context    ContextConfig    `yaml:"context"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Validation ValidationConfig `yaml:"validation"`
	Assembly   AssemblyConfig   `yaml:"assembly"`
	Scan       ScanConfig       `yaml:"scan"`
	Output     OutputConfig     `yaml:"output"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Logging    logging.Config   `yaml:"logging"`
}

// BackendConfig configures the generation backend and its retry loop.
type BackendConfig struct {
	Provider    string  `yaml:"provider"` // gemini, openai
	Model       string  `yaml:"model"`
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Timeout     string  `yaml:"timeout"`
	Attempts    int     `yaml:"attempts"`
	RetryDelay  string  `yaml:"retry_delay"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ChunkingConfig configures adaptive chunk sizing.
type ChunkingConfig struct {
	WholeFileThreshold int            `yaml:"whole_file_threshold"`
	Tiers              []chunker.Tier `yaml:"tiers"`
}

// ContextConfig configures Phase 1.
type ContextConfig struct {
	SampleThreshold int `yaml:"sample_threshold"`
	HeadLines       int `yaml:"head_lines"`
	TailLines       int `yaml:"tail_lines"`
	CacheSize       int `yaml:"cache_size"`
}

// AnnotationConfig configures Phase 2.
type AnnotationConfig struct {
	NumberLines bool `yaml:"number_lines"`
	Workers     int  `yaml:"workers"`      // Concurrent chunk requests per file
	FileWorkers int  `yaml:"file_workers"` // Concurrent files per run

	// Overrides every policy's duplicate insertion point rule when set
	AllowDuplicateInsertionPoints *bool `yaml:"allow_duplicate_insertion_points,omitempty"`
}

// ValidationConfig configures the advisory validator layers.
type ValidationConfig struct {
	MinRelevance        float64 `yaml:"min_relevance"`
	MinBusinessCoverage float64 `yaml:"min_business_coverage"`
	MinPurposeChars     int     `yaml:"min_purpose_chars"`
	MinCommentBlocks    int     `yaml:"min_comment_blocks"`
	StrictRelevance     bool    `yaml:"strict_relevance"`
	StrictCompleteness  bool    `yaml:"strict_completeness"`
	StrictBusinessTerms bool    `yaml:"strict_business_terms"`
}

// AssemblyConfig configures the failure policy.
type AssemblyConfig struct {
	FailurePolicy    string  `yaml:"failure_policy"` // strict, lenient
	SuccessThreshold float64 `yaml:"success_threshold"`
	Header           bool    `yaml:"header"`
}

// ScanConfig configures file discovery.
type ScanConfig struct {
	SkipPatterns []string `yaml:"skip_patterns"`
	SkipDirs     []string `yaml:"skip_dirs"`
	MaxFileSize  int64    `yaml:"max_file_size"`
}

// OutputConfig configures the sink.
type OutputConfig struct {
	Suffix    string `yaml:"suffix"`
	Dir       string `yaml:"dir"`
	InPlace   bool   `yaml:"in_place"`
	Overwrite bool   `yaml:"overwrite"`
	Backup    bool   `yaml:"backup"`
}

// LedgerConfig configures the processing ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Timeout:     backend.DefaultTimeout.String(),
			Attempts:    backend.DefaultAttempts,
			RetryDelay:  backend.DefaultRetryDelay.String(),
			Temperature: annotator.DefaultTemperature,
			MaxTokens:   annotator.DefaultMaxTokens,
		},
		Chunking: ChunkingConfig{
			WholeFileThreshold: chunker.DefaultWholeFileThreshold,
			Tiers:              chunker.DefaultTiers(),
		},
		Context: ContextConfig{
			SampleThreshold: extractor.DefaultSampleThreshold,
			HeadLines:       extractor.DefaultHeadLines,
			TailLines:       extractor.DefaultTailLines,
			CacheSize:       extractor.DefaultCacheSize,
		},
		Annotation: AnnotationConfig{
			NumberLines: true,
			Workers:     pipeline.DefaultChunkWorkers,
			FileWorkers: 1,
		},
		Validation: ValidationConfig{
			MinRelevance:        validator.DefaultMinRelevance,
			MinBusinessCoverage: validator.DefaultMinBusinessCoverage,
			MinPurposeChars:     validator.DefaultMinPurposeChars,
			MinCommentBlocks:    1,
		},
		Assembly: AssemblyConfig{
			FailurePolicy:    string(assembler.PolicyLenient),
			SuccessThreshold: assembler.DefaultSuccessThreshold,
			Header:           true,
		},
		Scan: ScanConfig{
			SkipPatterns: source.DefaultSkipPatterns(),
			SkipDirs:     source.DefaultSkipDirs(),
			MaxFileSize:  source.DefaultMaxFileSize,
		},
		Output: OutputConfig{
			Suffix: sink.DefaultSuffix,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    defaultLedgerPath(),
		},
		Logging: logging.Config{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// defaultLedgerPath places the ledger in the user's home directory, or the
// working directory when there is none
func defaultLedgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".codenotate", "ledger.db")
	}
	return filepath.Join(home, ".codenotate", "ledger.db")
}

// Load loads configuration from a YAML file. .env in the working directory
// is loaded first so its values take part in environment overrides. An
// empty path tries DefaultFileName; a missing default file yields defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// YAML renders the configuration
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(backend.EnvProvider); v != "" {
		c.Backend.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(backend.EnvModel); v != "" {
		c.Backend.Model = v
	}
	if v := os.Getenv(backend.EnvEndpoint); v != "" {
		c.Backend.Endpoint = v
	}

	// API keys only fill an empty key and never switch providers on their own
	if c.Backend.APIKey == "" {
		switch c.Backend.Provider {
		case backend.ProviderGemini:
			c.Backend.APIKey = firstNonEmpty(os.Getenv(backend.EnvGeminiAPIKey), os.Getenv(backend.EnvGoogleAPIKey))
		case backend.ProviderOpenAI:
			c.Backend.APIKey = os.Getenv(backend.EnvOpenAIAPIKey)
		}
	}

	if v := os.Getenv(EnvLanguage); v != "" {
		c.Language = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.Provider != "" && c.Backend.Provider != backend.ProviderGemini &&
		c.Backend.Provider != backend.ProviderOpenAI && c.Backend.Provider != "lmstudio" {
		errs = append(errs, fmt.Errorf("invalid backend provider: %s (valid: gemini, openai)", c.Backend.Provider))
	}
	if c.Backend.Attempts < 1 {
		errs = append(errs, fmt.Errorf("backend.attempts must be at least 1, got %d", c.Backend.Attempts))
	}
	if _, err := parseDuration("backend.timeout", c.Backend.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("backend.retry_delay", c.Backend.RetryDelay); err != nil {
		errs = append(errs, err)
	}
	if c.Backend.Temperature < 0 || c.Backend.Temperature > 2 {
		errs = append(errs, fmt.Errorf("backend.temperature must be within [0, 2], got %g", c.Backend.Temperature))
	}

	if c.Chunking.WholeFileThreshold < 0 {
		errs = append(errs, fmt.Errorf("chunking.whole_file_threshold cannot be negative"))
	}
	if err := validateTiers(c.Chunking.Tiers); err != nil {
		errs = append(errs, err)
	}

	if c.Context.HeadLines < 0 || c.Context.TailLines < 0 || c.Context.SampleThreshold < 0 {
		errs = append(errs, fmt.Errorf("context sample sizes cannot be negative"))
	}

	if c.Annotation.Workers < 0 || c.Annotation.FileWorkers < 0 {
		errs = append(errs, fmt.Errorf("annotation workers cannot be negative"))
	}

	for name, v := range map[string]float64{
		"validation.min_relevance":         c.Validation.MinRelevance,
		"validation.min_business_coverage": c.Validation.MinBusinessCoverage,
		"assembly.success_threshold":       c.Assembly.SuccessThreshold,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %g", name, v))
		}
	}

	if _, err := assembler.ParseFailurePolicy(c.Assembly.FailurePolicy); err != nil {
		errs = append(errs, err)
	}

	if c.Language != "" {
		if _, err := c.Registry().Lookup(c.Language); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Output.InPlace && c.Output.Dir != "" {
		errs = append(errs, fmt.Errorf("output.in_place and output.dir are mutually exclusive"))
	}

	if c.Ledger.Enabled && c.Ledger.Path == "" {
		errs = append(errs, fmt.Errorf("ledger.path is required when the ledger is enabled"))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// validateTiers requires ascending bounds with only the last tier unbounded
func validateTiers(tiers []chunker.Tier) error {
	prev := 0
	for i, t := range tiers {
		if t.Size <= 0 {
			return fmt.Errorf("chunking tier %d: size must be positive", i+1)
		}
		if t.Below == 0 {
			if i != len(tiers)-1 {
				return fmt.Errorf("chunking tier %d: only the last tier may be unbounded", i+1)
			}
			continue
		}
		if t.Below <= prev {
			return fmt.Errorf("chunking tiers must be ordered by ascending bound (tier %d)", i+1)
		}
		prev = t.Below
	}
	return nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", field)
	}
	return d, nil
}

// GetTimeout returns the backend timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := parseDuration("", c.Backend.Timeout)
	if err != nil || d == 0 {
		return backend.DefaultTimeout
	}
	return d
}

// GetRetryDelay returns the delay between attempts as a duration.
func (c *Config) GetRetryDelay() time.Duration {
	d, err := parseDuration("", c.Backend.RetryDelay)
	if err != nil {
		return backend.DefaultRetryDelay
	}
	return d
}
