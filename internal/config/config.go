package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/ragsweep/internal/observability"
	"github.com/haasonsaas/ragsweep/internal/rag/metrics"
	"github.com/haasonsaas/ragsweep/internal/rag/store"
	"github.com/haasonsaas/ragsweep/internal/retry"
	"github.com/haasonsaas/ragsweep/internal/sweep"
)

// Config is the main configuration structure for a ragsweep run.
type Config struct {
	Version       int                       `yaml:"version"`
	Experiment    ExperimentConfig          `yaml:"experiment"`
	Sweep         sweep.Spec                `yaml:"sweep"`
	KnowledgeBase KnowledgeBaseConfig       `yaml:"knowledge_base"`
	Dataset       DatasetConfig             `yaml:"dataset"`
	Store         store.Config              `yaml:"store"`
	Evaluation    EvaluationConfig          `yaml:"evaluation"`
	Output        OutputConfig              `yaml:"output"`
	Logging       observability.LogConfig   `yaml:"logging"`
	Tracing       observability.TraceConfig `yaml:"tracing"`
	Metrics       MetricsConfig             `yaml:"metrics"`
}

type ExperimentConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type KnowledgeBaseConfig struct {
	// Path is a file or a directory walked recursively.
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
}

type DatasetConfig struct {
	Path string `yaml:"path"`
}

type EvaluationConfig struct {
	// Timeout bounds one single evaluation. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`

	// Retry applies to transient evaluation errors. Builds are never retried.
	Retry retry.Config `yaml:"retry"`

	CaseSensitive    bool   `yaml:"case_sensitive"`
	TraceURLTemplate string `yaml:"trace_url_template"`
	EmbedBatchSize   int    `yaml:"embed_batch_size"`
}

type OutputConfig struct {
	SaveResults bool `yaml:"save_results"`

	// SaveResultsPath is a local directory or s3://bucket/prefix.
	SaveResultsPath string `yaml:"save_results_path"`

	// Formats lists the files written: json, jsonl, csv.
	Formats []string `yaml:"formats"`

	S3 S3Config `yaml:"s3"`
}

// S3Config configures s3:// result paths. Credentials fall back to the
// default AWS chain when the key pair is empty.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint, e.g. ":9090".
	// Empty disables it.
	Listen string `yaml:"listen"`
}

// Output formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// Load reads, validates and parses the configuration file. Relative paths in
// the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := ValidateRaw(raw); err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	resolvePaths(cfg, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Experiment.Name == "" {
		cfg.Experiment.Name = "ragsweep"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = store.BackendMemory
	}
	if cfg.Evaluation.Retry.MaxAttempts == 0 {
		def := retry.DefaultConfig()
		def.Jitter = cfg.Evaluation.Retry.Jitter
		if cfg.Evaluation.Retry.InitialDelay > 0 {
			def.InitialDelay = cfg.Evaluation.Retry.InitialDelay
		}
		if cfg.Evaluation.Retry.MaxDelay > 0 {
			def.MaxDelay = cfg.Evaluation.Retry.MaxDelay
		}
		if cfg.Evaluation.Retry.Factor > 0 {
			def.Factor = cfg.Evaluation.Retry.Factor
		}
		cfg.Evaluation.Retry = def
	}
	if cfg.Evaluation.EmbedBatchSize == 0 {
		cfg.Evaluation.EmbedBatchSize = 100
	}
	if cfg.Output.SaveResultsPath == "" {
		cfg.Output.SaveResultsPath = "results"
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{FormatJSON}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "ragsweep"
	}
}

func resolvePaths(cfg *Config, baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	cfg.KnowledgeBase.Path = resolve(cfg.KnowledgeBase.Path)
	cfg.Dataset.Path = resolve(cfg.Dataset.Path)
	if cfg.Store.Path != "" && cfg.Store.Path != ":memory:" {
		cfg.Store.Path = resolve(cfg.Store.Path)
	}
	if !IsS3Path(cfg.Output.SaveResultsPath) {
		cfg.Output.SaveResultsPath = resolve(cfg.Output.SaveResultsPath)
	}
}

// IsS3Path reports whether p names an S3 location.
func IsS3Path(p string) bool {
	return strings.HasPrefix(p, "s3://")
}

// Validate checks semantic constraints the schema cannot express. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if err := ValidateVersion(c.Version); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.KnowledgeBase.Path) == "" {
		errs = append(errs, errors.New("knowledge_base.path is required"))
	}
	if strings.TrimSpace(c.Dataset.Path) == "" {
		errs = append(errs, errors.New("dataset.path is required"))
	}
	if _, err := sweep.Expand(c.Sweep, metrics.Known); err != nil {
		errs = append(errs, fmt.Errorf("sweep: %w", err))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Evaluation.Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("evaluation.retry: %w", err))
	}
	if c.Evaluation.Timeout < 0 {
		errs = append(errs, errors.New("evaluation.timeout must not be negative"))
	}
	if c.Evaluation.EmbedBatchSize < 0 {
		errs = append(errs, errors.New("evaluation.embed_batch_size must not be negative"))
	}
	for _, f := range c.Output.Formats {
		switch f {
		case FormatJSON, FormatJSONL, FormatCSV:
		default:
			errs = append(errs, fmt.Errorf("output.formats: unknown format %q", f))
		}
	}
	if IsS3Path(c.Output.SaveResultsPath) && strings.TrimPrefix(c.Output.SaveResultsPath, "s3://") == "" {
		errs = append(errs, errors.New("output.save_results_path: s3 location needs a bucket"))
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sampling_rate must be in [0, 1], got %v", c.Tracing.SamplingRate))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %w", errors.Join(errs...))
}
