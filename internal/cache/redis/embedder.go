package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/internal/metrics"
	"github.com/bd-law-agent/backend/pkg/logger"
	"github.com/bd-law-agent/backend/pkg/utils"
)

type embeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// CachingEmbedder fronts an embedding provider with the redis embedding cache,
// keyed by the hash of the chunk text. Identical chunks, common with
// re-uploaded filings, skip the remote embedding call. Cache failures degrade
// to the provider.
type CachingEmbedder struct {
	provider embeddingProvider
	cache    *Client
	ttl      time.Duration
}

func NewCachingEmbedder(provider embeddingProvider, cache *Client, ttl time.Duration) *CachingEmbedder {
	return &CachingEmbedder{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
	}
}

func (e *CachingEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	hash := utils.HashString(text)

	cached, hit, err := e.cache.GetEmbedding(ctx, hash)
	if err != nil {
		logger.Warn("Embedding cache lookup failed", zap.Error(err))
	} else if hit {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := e.provider.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, hash, embedding, e.ttl); err != nil {
		logger.Warn("Embedding cache store failed", zap.Error(err))
	}

	return embedding, nil
}

// GenerateBatchEmbeddings serves what it can from cache and batches the rest
// through the provider in one call, preserving input order.
func (e *CachingEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		hash := utils.HashString(text)
		cached, hit, err := e.cache.GetEmbedding(ctx, hash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			results[i] = cached
			continue
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	embeddings, err := e.provider.GenerateBatchEmbeddings(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(missTexts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(missTexts))
	}

	for j, idx := range missIdx {
		results[idx] = embeddings[j]
		if err := e.cache.SetEmbedding(ctx, utils.HashString(missTexts[j]), embeddings[j], e.ttl); err != nil {
			logger.Warn("Embedding cache store failed", zap.Error(err))
		}
	}

	return results, nil
}
