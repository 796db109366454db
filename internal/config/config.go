// Package config loads and validates the engine configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/draylor/repolens/pkg/types"
)

// Environment variable names. Credentials are never read from the YAML file.
const (
	EnvGitHubToken  = "REPOLENS_GITHUB_TOKEN"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvRepo         = "REPOLENS_REPO"
	EnvDBPath       = "REPOLENS_DB_PATH"
	EnvLogLevel     = "REPOLENS_LOG_LEVEL"
	EnvMaxResults   = "REPOLENS_MAX_RESULTS"
)

// Config is the complete engine configuration.
type Config struct {
	Repo       RepoConfig       `yaml:"repo"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RepoConfig identifies the single target repository.
type RepoConfig struct {
	// Name is the logical repository identifier in "owner/name" form. A full
	// https://github.com/owner/name URL is accepted and normalized.
	Name   string `yaml:"name"`
	Branch string `yaml:"branch"`
	// FileExtension filters which source files are indexed.
	FileExtension string `yaml:"file_extension"`
	// Token is resolved from the environment, never from the file.
	Token string `yaml:"-"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	APIKey     string `yaml:"-"`
}

// SearchConfig configures query-time retrieval.
type SearchConfig struct {
	// MaxResults bounds the merged result list. Valid range is 3-6.
	MaxResults int `yaml:"max_results"`
	// VectorTopK is how many chunks the similarity search returns before
	// merging.
	VectorTopK int `yaml:"vector_top_k"`
	// SourceTimeout bounds each retrieval source; a timed-out source
	// degrades to the other source's results.
	SourceTimeout time.Duration `yaml:"source_timeout"`
}

// IndexingConfig configures the indexing run.
type IndexingConfig struct {
	// Workers bounds concurrent per-file chunk/embed/upsert pipelines.
	Workers int `yaml:"workers"`
	// FileLimit is a safety cap on files processed in one run.
	FileLimit int `yaml:"file_limit"`
}

// StorageConfig configures the chunk store.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Repo: RepoConfig{
			Branch:        "HEAD",
			FileExtension: ".py",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "gemini",
			Model:      "gemini-embedding-001",
			Dimensions: 768,
			BatchSize:  16,
		},
		Search: SearchConfig{
			MaxResults:    5,
			VectorTopK:    6,
			SourceTimeout: 20 * time.Second,
		},
		Indexing: IndexingConfig{
			Workers:   4,
			FileLimit: 150,
		},
		Storage: StorageConfig{
			DBPath: "repolens.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path (if it exists), applies environment
// overrides, and validates the result. A missing file is not an error; the
// defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", types.ErrConfiguration, path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRepo); v != "" {
		c.Repo.Name = v
	}
	if v := os.Getenv(EnvGitHubToken); v != "" {
		c.Repo.Token = v
	} else if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Repo.Token = v
	}
	if v := os.Getenv(EnvGeminiAPIKey); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvMaxResults); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResults = n
		}
	}

	c.Repo.Name = NormalizeRepoName(c.Repo.Name)
}

// Validate enforces the startup invariants. Violations are fatal
// configuration errors, detected here rather than per-chunk.
func (c *Config) Validate() error {
	if c.Repo.Name == "" {
		return fmt.Errorf("%w: repo.name is required (owner/name)", types.ErrConfiguration)
	}
	if !strings.Contains(c.Repo.Name, "/") {
		return fmt.Errorf("%w: repo.name %q must be owner/name", types.ErrConfiguration, c.Repo.Name)
	}
	if c.Repo.Token == "" {
		return fmt.Errorf("%w: %s is required", types.ErrConfiguration, EnvGitHubToken)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("%w: embeddings.dimensions must be positive", types.ErrConfiguration)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("%w: embeddings.batch_size must be positive", types.ErrConfiguration)
	}
	if c.Search.MaxResults < 3 || c.Search.MaxResults > 6 {
		return fmt.Errorf("%w: search.max_results %d outside range 3-6", types.ErrConfiguration, c.Search.MaxResults)
	}
	if c.Search.VectorTopK <= 0 {
		return fmt.Errorf("%w: search.vector_top_k must be positive", types.ErrConfiguration)
	}
	if c.Indexing.Workers <= 0 {
		return fmt.Errorf("%w: indexing.workers must be positive", types.ErrConfiguration)
	}
	if !strings.HasPrefix(c.Repo.FileExtension, ".") {
		return fmt.Errorf("%w: repo.file_extension %q must start with a dot", types.ErrConfiguration, c.Repo.FileExtension)
	}
	return nil
}

// NormalizeRepoName reduces a repository URL to its "owner/name" form.
func NormalizeRepoName(name string) string {
	name = strings.TrimPrefix(name, "https://github.com/")
	return strings.Trim(name, "/")
}
