package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"docsearch/internal/adapter/chunker"
	"docsearch/internal/domain"
)

// DataDir is the per-project directory holding the index and optional config.
const DataDir = ".docsearch"

// Config holds all configuration for docsearch.
type Config struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Index     IndexConfig     `yaml:"index"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChunkingConfig holds chunker defaults.
type ChunkingConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "hash", "openai", "ollama", "jina"
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL        string `yaml:"base_url"`
	Dimension      int    `yaml:"dimension"` // 0 = learned from the first response
	BatchSize      int    `yaml:"batch_size"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryDelayMs   int    `yaml:"retry_delay_ms"`
	QueryCacheSize int    `yaml:"query_cache_size"` // 0 disables the query cache

	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables client-side rate limiting
	Burst             int     `yaml:"burst"`
}

// RetrieveConfig holds retrieval defaults.
type RetrieveConfig struct {
	TopK           int      `yaml:"top_k"`
	ScoreThreshold *float64 `yaml:"score_threshold"` // nil = no filtering
}

// IndexConfig holds index storage and directory walking configuration.
type IndexConfig struct {
	Backend  string   `yaml:"backend"` // "bolt" or "memory"
	Path     string   `yaml:"path"`    // relative to the project dir
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_sec"`
	MaxUploadMB     int    `yaml:"max_upload_mb"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			MaxChars:     1000,
			OverlapChars: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:       "hash",
			Model:          "feature-hash-v1",
			APIKeyEnv:      "OPENAI_API_KEY",
			Dimension:      384,
			BatchSize:      100,
			TimeoutSec:     30,
			MaxRetries:     1,
			RetryDelayMs:   500,
			QueryCacheSize: 256,
		},
		Retrieve: RetrieveConfig{
			TopK: 5,
		},
		Index: IndexConfig{
			Backend:  "bolt",
			Path:     filepath.Join(DataDir, "index.db"),
			Includes: []string{"**/*.txt", "**/*.md", "**/*.markdown", "**/*.text", "**/*.log"},
			Excludes: []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/" + DataDir + "/**"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 60,
			ShutdownSec:     10,
			MaxUploadMB:     10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. ${VAR} and ${VAR:-default} are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docsearch.yaml,
// then .docsearch/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	for _, path := range []string{
		filepath.Join(dir, "docsearch.yaml"),
		filepath.Join(dir, DataDir, "config.yaml"),
	} {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return DefaultConfig(), nil
}

// Validate checks the configuration and returns a *domain.ConfigurationError
// naming the first offending field.
func (c *Config) Validate() error {
	if err := chunker.Validate(c.Chunking.MaxChars, c.Chunking.OverlapChars); err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return &domain.ConfigurationError{Field: "chunking." + cfgErr.Field, Reason: cfgErr.Reason}
		}
		return err
	}

	switch c.Embedding.Provider {
	case "hash", "openai", "ollama", "jina":
	default:
		return invalid("embedding.provider", fmt.Sprintf("unknown provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension < 0 {
		return invalid("embedding.dimension", fmt.Sprintf("must not be negative, got %d", c.Embedding.Dimension))
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimension == 0 {
		return invalid("embedding.dimension", "the hash provider needs an explicit dimension")
	}
	if c.Embedding.BatchSize < 0 || c.Embedding.MaxRetries < 0 || c.Embedding.QueryCacheSize < 0 {
		return invalid("embedding", "batch_size, max_retries and query_cache_size must not be negative")
	}
	if c.Embedding.MaxRetries > 1 {
		return invalid("embedding.max_retries", fmt.Sprintf("at most one retry is allowed, got %d", c.Embedding.MaxRetries))
	}
	if c.Embedding.RequestsPerSecond < 0 || c.Embedding.Burst < 0 {
		return invalid("embedding.requests_per_second", "rate limit settings must not be negative")
	}

	if c.Retrieve.TopK <= 0 {
		return invalid("retrieve.top_k", fmt.Sprintf("must be positive, got %d", c.Retrieve.TopK))
	}
	if t := c.Retrieve.ScoreThreshold; t != nil && (*t < -1 || *t > 1) {
		return invalid("retrieve.score_threshold", fmt.Sprintf("must be in [-1, 1], got %v", *t))
	}

	switch c.Index.Backend {
	case "bolt":
		if c.Index.Path == "" {
			return invalid("index.path", "required for the bolt backend")
		}
	case "memory":
	default:
		return invalid("index.backend", fmt.Sprintf("unknown backend %q", c.Index.Backend))
	}

	if c.Server.MaxUploadMB < 0 {
		return invalid("server.max_upload_mb", "must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return invalid("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format))
	}
	return nil
}

// ChunkConfig returns the chunker defaults as a domain value.
func (c *Config) ChunkConfig() domain.ChunkConfig {
	return domain.ChunkConfig{MaxChars: c.Chunking.MaxChars, OverlapChars: c.Chunking.OverlapChars}
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database for a project dir.
func (c *Config) IndexDBPath(dir string) string {
	if filepath.IsAbs(c.Index.Path) {
		return c.Index.Path
	}
	return filepath.Join(dir, c.Index.Path)
}

// EnsureDataDir ensures the directory holding the index database exists.
func (c *Config) EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Dir(c.IndexDBPath(dir)), 0755)
}

func invalid(field, reason string) error {
	return &domain.ConfigurationError{Field: field, Reason: reason}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
