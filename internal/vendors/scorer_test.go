package vendors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-risk-eval/backend/internal/pipeline"
	"contract-risk-eval/backend/internal/registry"
)

func steadyMetrics() Metrics {
	return Metrics{
		OnTimeDelivery: 90,
		Quality:        85,
		ResponseTime:   80,
		CostEfficiency: 75,
		Compliance:     95,
	}
}

func TestBaselineWeighting(t *testing.T) {
	// 90*.25 + 85*.25 + 80*.15 + 75*.15 + 95*.20 = 85.5
	assert.InDelta(t, 85.5, steadyMetrics().Baseline(), 1e-9)
}

func TestScorePenalizesFindings(t *testing.T) {
	scorer := NewScorer(nil)
	card, err := scorer.Score(context.Background(), "Acme Industrial", steadyMetrics(), []pipeline.Finding{{
		Category:    pipeline.CategoryOperational,
		Severity:    pipeline.SeverityHigh,
		Confidence:  0.9,
		Description: "Two missed delivery windows last quarter",
	}})
	require.NoError(t, err)

	assert.InDelta(t, 85.5, card.BaselineScore, 1e-9)
	assert.InDelta(t, 80.5, card.OverallScore, 1e-9)
	assert.Equal(t, "B+", card.Grade)
	assert.Equal(t, "LOW", card.RiskLevel)
	assert.False(t, card.Excluded)
	assert.Empty(t, card.ExclusionNotes)
	require.Len(t, card.Findings, 1)
	assert.NotEmpty(t, card.Recommendations)
}

func TestScoreWithoutFindings(t *testing.T) {
	card, err := NewScorer(nil).Score(context.Background(), "Acme", steadyMetrics(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 85.5, card.OverallScore, 1e-9)
	assert.Equal(t, "B+", card.Grade)
	assert.Equal(t, "LOW", card.RiskLevel)
	assert.Empty(t, card.Findings)
}

func TestScoreRejectsBadMetrics(t *testing.T) {
	m := steadyMetrics()
	m.Quality = 120
	_, err := NewScorer(nil).Score(context.Background(), "Acme", m, nil)
	assert.ErrorIs(t, err, ErrInvalidMetric)
}

func TestScoreRejectsMissingVendor(t *testing.T) {
	_, err := NewScorer(nil).Score(context.Background(), "  ", steadyMetrics(), nil)
	assert.ErrorIs(t, err, ErrMissingVendor)
}

type stubLookup struct {
	result registry.LookupResult
	err    error
}

func (s stubLookup) Lookup(context.Context, string) (registry.LookupResult, error) {
	return s.result, s.err
}

func TestScoreExcludedVendor(t *testing.T) {
	lookup := stubLookup{result: registry.LookupResult{
		Term:    "shady supply co",
		Checked: true,
		Exclusions: []registry.Exclusion{{
			Name:           "Shady Supply Co",
			Agency:         "GSA",
			Classification: "Firm",
			Active:         true,
		}},
	}}
	card, err := NewScorer(lookup).Score(context.Background(), "Shady Supply Co", steadyMetrics(), nil)
	require.NoError(t, err)

	assert.True(t, card.Excluded)
	assert.Equal(t, "CRITICAL", card.RiskLevel)
	assert.Equal(t, "Excluded by GSA (Firm)", card.ExclusionNotes)
	// one critical exclusion finding knocks 10 points off the baseline
	assert.InDelta(t, 75.5, card.OverallScore, 1e-9)
	require.Len(t, card.Findings, 1)
	assert.Equal(t, pipeline.SeverityCritical, card.Findings[0].Severity)
	require.Len(t, card.Recommendations, 1)
	assert.True(t, strings.Contains(card.Recommendations[0].Text, "critical"))
}

func TestScoreLookupFailureIsNonFatal(t *testing.T) {
	lookup := stubLookup{err: errors.New("registry unavailable")}
	card, err := NewScorer(lookup).Score(context.Background(), "Acme", steadyMetrics(), nil)
	require.NoError(t, err)
	assert.False(t, card.Excluded)
	assert.InDelta(t, 85.5, card.OverallScore, 1e-9)
}
