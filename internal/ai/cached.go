package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"contract-risk-eval/backend/internal/cache"
)

type cachedAnalyzer struct {
	inner Analyzer
	store cache.Cache
	ttl   time.Duration
}

// WithCache memoizes analyzer results keyed by task and document hash.
// Cache trouble is treated as a miss; the inner analyzer is the source of
// truth.
func WithCache(inner Analyzer, store cache.Cache, ttl time.Duration) Analyzer {
	if inner == nil || store == nil || ttl <= 0 {
		return inner
	}
	return &cachedAnalyzer{inner: inner, store: store, ttl: ttl}
}

func (c *cachedAnalyzer) Enabled() bool {
	return c.inner.Enabled()
}

func (c *cachedAnalyzer) Analyze(ctx context.Context, text string, task Task) (Result, error) {
	key := cacheKey(text, task)
	if raw, ok := c.store.Get(ctx, key); ok {
		var result Result
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			return result, nil
		}
	}

	result, err := c.inner.Analyze(ctx, text, task)
	if err != nil {
		return Result{}, err
	}
	// Degraded results stay uncached so the next call retries the model
	// for a structured reply.
	if !result.Degraded {
		if payload, err := json.Marshal(result); err == nil {
			c.store.Set(ctx, key, string(payload), c.ttl)
		}
	}
	return result, nil
}

func cacheKey(text string, task Task) string {
	sum := sha256.Sum256([]byte(text))
	return "analysis:" + string(task) + ":" + hex.EncodeToString(sum[:])
}
