package negotiation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-risk-eval/backend/internal/pipeline"
)

func TestBuildRanksFindingsBySeverity(t *testing.T) {
	s := NewStrategist(nil, nil)
	strategy, err := s.Build(context.Background(), Request{
		Vendor:    "Acme",
		RiskScore: 30,
		Findings: []pipeline.Finding{
			{Category: pipeline.CategoryOperational, Severity: pipeline.SeverityLow, Confidence: 0.9, Description: "Slow escalation path"},
			{Category: pipeline.CategoryLegal, Severity: pipeline.SeverityCritical, Confidence: 0.9, Description: "Unlimited liability", Mitigation: "Cap liability at 12 months of fees"},
			{Category: pipeline.CategoryFinancial, Severity: pipeline.SeverityMedium, Confidence: 0.8, Description: "Compounding late fees"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, PostureFirm, strategy.Posture)
	require.NotEmpty(t, strategy.LeveragePoints)
	first := strategy.LeveragePoints[0]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, pipeline.CategoryLegal, first.Topic)
	assert.Equal(t, "Cap liability at 12 months of fees", first.Argument)
	for i := 1; i < len(strategy.LeveragePoints); i++ {
		assert.GreaterOrEqual(t, strategy.LeveragePoints[i-1].Weight, strategy.LeveragePoints[i].Weight)
	}
}

func TestBuildCapsLeveragePoints(t *testing.T) {
	findings := make([]pipeline.Finding, 0, 8)
	for i := 0; i < 8; i++ {
		findings = append(findings, pipeline.Finding{
			Category:    pipeline.CategoryLegal,
			Severity:    pipeline.SeverityHigh,
			Confidence:  0.9,
			Description: "Issue " + string(rune('A'+i)),
		})
	}
	strategy, err := NewStrategist(nil, nil).Build(context.Background(), Request{Vendor: "Acme", Findings: findings})
	require.NoError(t, err)
	assert.Len(t, strategy.LeveragePoints, MaxLeveragePoints)
}

func TestBuildWeakGradeAddsPerformanceLeverage(t *testing.T) {
	strategy, err := NewStrategist(nil, nil).Build(context.Background(), Request{
		Vendor:      "Acme",
		VendorGrade: "D",
	})
	require.NoError(t, err)

	assert.Equal(t, PostureFirm, strategy.Posture)
	require.Len(t, strategy.LeveragePoints, 1)
	assert.Equal(t, "performance", strategy.LeveragePoints[0].Topic)
}

func TestBuildPostureHardensWithRisk(t *testing.T) {
	strategy, err := NewStrategist(nil, nil).Build(context.Background(), Request{
		Vendor:    "Acme",
		RiskScore: 80,
		Findings: []pipeline.Finding{
			{Category: pipeline.CategoryLegal, Severity: pipeline.SeverityCritical, Confidence: 1, Description: "Broad indemnity"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, PostureAggressive, strategy.Posture)
}

func TestBuildCollaborativeWhenClean(t *testing.T) {
	strategy, err := NewStrategist(nil, nil).Build(context.Background(), Request{
		Vendor:      "Acme",
		VendorGrade: "A",
	})
	require.NoError(t, err)
	assert.Equal(t, PostureCollaborative, strategy.Posture)
	assert.Empty(t, strategy.LeveragePoints)
}

func TestBuildRejectsEmptyRequest(t *testing.T) {
	_, err := NewStrategist(nil, nil).Build(context.Background(), Request{Vendor: "Acme"})
	assert.ErrorIs(t, err, ErrNoInputs)
}
