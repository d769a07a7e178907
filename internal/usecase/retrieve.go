package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"docsearch/internal/domain"
	"docsearch/internal/logger"
	"docsearch/internal/metrics"
	"docsearch/internal/port"
)

// RetrieveUseCase handles search operations.
type RetrieveUseCase struct {
	provider         port.EmbeddingProvider
	index            port.VectorIndex
	defaultK         int
	defaultThreshold *float64
	logger           *zap.Logger
}

// NewRetrieveUseCase creates a new retrieve use case. defaultThreshold may be nil.
func NewRetrieveUseCase(
	provider port.EmbeddingProvider,
	index port.VectorIndex,
	defaultK int,
	defaultThreshold *float64,
	logger *zap.Logger,
) *RetrieveUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrieveUseCase{
		provider:         provider,
		index:            index,
		defaultK:         defaultK,
		defaultThreshold: defaultThreshold,
		logger:           logger,
	}
}

// Search embeds query and returns the ranked index results unchanged.
// k == 0 and a nil scoreThreshold select the configured defaults.
func (u *RetrieveUseCase) Search(ctx context.Context, query string, k int, scoreThreshold *float64) ([]domain.SearchResult, error) {
	start := time.Now()
	results, err := u.search(ctx, query, k, scoreThreshold)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchesTotal.WithLabelValues(status).Inc()
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	log := logger.FromContext(ctx, u.logger).With(zap.String("query_hash", QueryHash(query)))
	if err != nil {
		log.Warn("Search failed", zap.Error(err))
		return nil, err
	}
	log.Debug("Search completed",
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

func (u *RetrieveUseCase) search(ctx context.Context, query string, k int, scoreThreshold *float64) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &domain.InvalidQueryError{Reason: "query must not be empty"}
	}
	if k < 0 {
		return nil, &domain.InvalidQueryError{Reason: fmt.Sprintf("k must not be negative, got %d", k)}
	}
	if k == 0 {
		k = u.defaultK
	}
	if scoreThreshold == nil {
		scoreThreshold = u.defaultThreshold
	}
	if t := scoreThreshold; t != nil && (math.IsNaN(*t) || *t < -1 || *t > 1) {
		return nil, &domain.InvalidQueryError{Reason: fmt.Sprintf("score threshold must be in [-1, 1], got %v", *t)}
	}

	vector, err := u.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := u.index.Query(ctx, vector, k, scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	return results, nil
}

// QueryHash identifies a query in logs without revealing its text.
func QueryHash(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:8])
}
