package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docsearch/internal/domain"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	JinaBaseURL   = "https://api.jina.ai/v1"
	OllamaBaseURL = "http://localhost:11434/v1"

	defaultBatchSize = 100
)

// OpenAIProvider calls any OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	batchSize int
	request   int // dimensions sent with the request, 0 to omit

	mu        sync.RWMutex
	dimension int
}

// OpenAIConfig holds the provider settings.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	BatchSize int
	Timeout   time.Duration
	// SendDimensions asks the API to shorten vectors to Dimension.
	SendDimensions bool
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = KnownDimension(cfg.Model)
	}

	p := &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		batchSize: batchSize,
		dimension: dimension,
	}
	if cfg.SendDimensions && cfg.Dimension > 0 {
		p.request = cfg.Dimension
	}
	return p
}

// NewOpenAICompatibleProvider reads the API key from apiKeyEnv.
func NewOpenAICompatibleProvider(apiKeyEnv string, cfg OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, &domain.ConfigurationError{
			Field:  "embedding.api_key_env",
			Reason: fmt.Sprintf("API key not found in environment variable %s", apiKeyEnv),
		}
	}
	cfg.APIKey = apiKey
	return NewOpenAIProvider(cfg), nil
}

// NewOllamaProvider talks to a local Ollama server, which needs no API key.
func NewOllamaProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OllamaBaseURL
	}
	cfg.APIKey = "ollama"
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return NewOpenAIProvider(cfg)
}

// KnownDimension returns the native vector length of common models, or 0.
func KnownDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "jina-embeddings-v3":
		return 1024
	case "jina-embeddings-v4":
		return 2048
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm", "all-MiniLM-L6-v2":
		return 384
	}
	return 0
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return []domain.Embedding{}, nil
	}

	all := make([]domain.Embedding, 0, len(texts))
	for i := 0; i < len(texts); i += p.batchSize {
		end := min(i+p.batchSize, len(texts))
		embeddings, err := p.embed(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, embeddings...)
	}
	return all, nil
}

func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	embeddings, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *OpenAIProvider) Dimension() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dimension
}

func (p *OpenAIProvider) ModelName() string {
	return p.model
}

func (p *OpenAIProvider) embed(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(p.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if p.request > 0 {
		req.Dimensions = p.request
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, &domain.EmbeddingUnavailableError{
			Reason: fmt.Sprintf("provider returned %d embeddings for %d inputs", len(resp.Data), len(texts)),
		}
	}

	embeddings := make([]domain.Embedding, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) || embeddings[data.Index] != nil {
			return nil, &domain.EmbeddingUnavailableError{Reason: fmt.Sprintf("invalid embedding index %d", data.Index)}
		}
		embeddings[data.Index] = data.Embedding
	}

	if err := p.checkDimension(embeddings); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// checkDimension learns the dimension from the first response when it is
// not configured, and rejects vectors of any other length afterwards.
func (p *OpenAIProvider) checkDimension(embeddings []domain.Embedding) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range embeddings {
		if p.dimension == 0 {
			p.dimension = len(e)
		}
		if len(e) != p.dimension {
			return &domain.EmbeddingUnavailableError{
				Reason: "inconsistent vector length",
				Err:    &domain.DimensionMismatchError{Expected: p.dimension, Got: len(e)},
			}
		}
	}
	return nil
}

// parseAPIError classifies a go-openai failure. Rate limits, server errors,
// timeouts and network errors are transient.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.EmbeddingUnavailableError{
			Reason:    fmt.Sprintf("embedding API error %d", reqErr.HTTPStatusCode),
			Transient: transientStatus(reqErr.HTTPStatusCode),
			Err:       err,
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.EmbeddingUnavailableError{
			Reason:    fmt.Sprintf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message),
			Transient: transientStatus(apiErr.HTTPStatusCode),
			Err:       err,
		}
	}

	if errors.Is(err, context.Canceled) {
		return &domain.EmbeddingUnavailableError{Reason: "request cancelled", Err: err}
	}

	var netErr net.Error
	transient := errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr)
	return &domain.EmbeddingUnavailableError{Reason: "embedding request failed", Transient: transient, Err: err}
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
