// Package app is the composition root shared by the CLI and the benchmark.
package app

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"docsearch/config"
	"docsearch/internal/adapter/chunker"
	"docsearch/internal/adapter/embedding"
	"docsearch/internal/adapter/memstore"
	"docsearch/internal/adapter/store"
	"docsearch/internal/domain"
	"docsearch/internal/port"
	"docsearch/internal/usecase"
)

// App holds the wired pipelines for one project directory.
type App struct {
	Config   *config.Config
	Provider port.EmbeddingProvider
	Index    port.VectorIndex
	Registry port.DocumentRegistry
	Ingest   *usecase.IngestUseCase
	Retrieve *usecase.RetrieveUseCase
	Catalog  *usecase.CatalogUseCase

	store *store.BoltStore
}

// Open builds the provider chain and opens the configured index backend.
// A bolt index whose stored schema does not match the provider fails with
// *domain.SchemaMismatchError.
func Open(cfg *config.Config, dir string, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	provider, err := BuildProvider(cfg.Embedding, log)
	if err != nil {
		return nil, err
	}

	schema := domain.IndexSchema{
		Version:   store.CurrentSchemaVersion,
		Model:     provider.ModelName(),
		Dimension: provider.Dimension(),
	}

	a := &App{Config: cfg, Provider: provider}
	switch cfg.Index.Backend {
	case "memory":
		a.Index = memstore.NewIndex(schema)
		a.Registry = memstore.NewRegistry()
	case "bolt":
		if err := cfg.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.Open(cfg.IndexDBPath(dir))
		if err != nil {
			return nil, err
		}
		idx, err := store.NewBoltIndex(st, schema)
		if err != nil {
			st.Close()
			return nil, err
		}
		a.store = st
		a.Index = idx
		a.Registry = store.NewBoltRegistry(st)
	default:
		return nil, &domain.ConfigurationError{Field: "index.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Index.Backend)}
	}

	a.Ingest = usecase.NewIngestUseCase(chunker.NewCharChunker(), provider, a.Index, a.Registry, cfg.ChunkConfig(), log)
	a.Retrieve = usecase.NewRetrieveUseCase(provider, a.Index, cfg.Retrieve.TopK, cfg.Retrieve.ScoreThreshold, log)
	a.Catalog = usecase.NewCatalogUseCase(a.Index, a.Registry)

	log.Debug("Index opened",
		zap.String("backend", cfg.Index.Backend),
		zap.String("model", schema.Model),
		zap.Int("dimension", a.Index.Schema().Dimension),
	)
	return a, nil
}

// Close releases the index file, if any.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// BuildProvider assembles the decorator chain: base -> RateLimit -> Retry -> Instrumented -> QueryCache.
func BuildProvider(cfg config.EmbeddingConfig, log *zap.Logger) (port.EmbeddingProvider, error) {
	openaiCfg := embedding.OpenAIConfig{
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
	}

	var base port.EmbeddingProvider
	switch cfg.Provider {
	case "hash":
		model := cfg.Model
		if model == "" {
			model = embedding.DefaultHashModel
		}
		p, err := embedding.NewHashProvider(cfg.Dimension, model)
		if err != nil {
			return nil, err
		}
		base = p
	case "openai":
		if openaiCfg.BaseURL == "" {
			openaiCfg.BaseURL = embedding.OpenAIBaseURL
		}
		if openaiCfg.Model == "" {
			openaiCfg.Model = "text-embedding-3-small"
		}
		openaiCfg.SendDimensions = cfg.Dimension > 0 && cfg.Dimension != embedding.KnownDimension(openaiCfg.Model)
		p, err := embedding.NewOpenAICompatibleProvider(apiKeyEnv(cfg, "OPENAI_API_KEY"), openaiCfg)
		if err != nil {
			return nil, err
		}
		base = p
	case "jina":
		if openaiCfg.BaseURL == "" {
			openaiCfg.BaseURL = embedding.JinaBaseURL
		}
		if openaiCfg.Model == "" {
			openaiCfg.Model = "jina-embeddings-v3"
		}
		p, err := embedding.NewOpenAICompatibleProvider(apiKeyEnv(cfg, "JINA_API_KEY"), openaiCfg)
		if err != nil {
			return nil, err
		}
		base = p
	case "ollama":
		if openaiCfg.Model == "" {
			openaiCfg.Model = "nomic-embed-text"
		}
		base = embedding.NewOllamaProvider(openaiCfg)
	default:
		return nil, &domain.ConfigurationError{Field: "embedding.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}

	var provider port.EmbeddingProvider = base
	if cfg.RequestsPerSecond > 0 {
		provider = embedding.NewRateLimitedProvider(provider, embedding.RateLimitConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         cfg.Burst,
		})
	}
	if cfg.Provider != "hash" && cfg.MaxRetries > 0 {
		retry := embedding.DefaultRetryConfig()
		retry.MaxRetries = cfg.MaxRetries
		if cfg.RetryDelayMs > 0 {
			retry.RetryDelay = time.Duration(cfg.RetryDelayMs) * time.Millisecond
		}
		provider = embedding.NewRetryProvider(provider, retry, log)
	}
	provider = embedding.NewInstrumentedProvider(provider, cfg.Provider, log)
	if cfg.QueryCacheSize > 0 {
		provider = embedding.NewQueryCache(provider, cfg.QueryCacheSize, time.Hour)
	}
	return provider, nil
}

// apiKeyEnv keeps the configured variable unless it is still the OpenAI
// default and the provider has its own.
func apiKeyEnv(cfg config.EmbeddingConfig, fallback string) string {
	if cfg.APIKeyEnv == "" || (cfg.APIKeyEnv == "OPENAI_API_KEY" && fallback != "OPENAI_API_KEY") {
		return fallback
	}
	return cfg.APIKeyEnv
}

// DocumentID derives a stable ID from a file path relative to the project
// dir, so re-ingesting a file replaces its earlier version.
func DocumentID(dir, path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	rel := path
	if r, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(r, "..") {
		rel = r
	}
	hash := sha256.Sum256([]byte(filepath.ToSlash(rel)))
	return hex.EncodeToString(hash[:8])
}
