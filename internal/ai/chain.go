package ai

import (
	"context"
	"strings"
)

type analyzerChain struct {
	primary  Analyzer
	fallback Analyzer
}

// WithFallback returns an analyzer that first tries the primary
// implementation and falls back to the provided analyzer when the primary
// is unavailable or produces an unusable response.
func WithFallback(primary, fallback Analyzer) Analyzer {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &analyzerChain{primary: primary, fallback: fallback}
}

func (c *analyzerChain) Enabled() bool {
	if c == nil {
		return false
	}
	if c.primary != nil && c.primary.Enabled() {
		return true
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return true
	}
	return false
}

func (c *analyzerChain) Analyze(ctx context.Context, text string, task Task) (Result, error) {
	if c == nil {
		return Result{}, ErrDisabled
	}
	if c.primary != nil && c.primary.Enabled() {
		if result, err := c.primary.Analyze(ctx, text, task); err == nil {
			if strings.TrimSpace(result.Narrative) != "" || len(result.Findings) > 0 {
				return result, nil
			}
		}
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Analyze(ctx, text, task)
	}
	return Result{}, ErrDisabled
}
