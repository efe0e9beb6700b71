package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceBandBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, ConfidenceVeryHigh},
		{85, ConfidenceVeryHigh},
		{84.999, ConfidenceHigh},
		{75, ConfidenceHigh},
		{74.999, ConfidenceMedium},
		{60, ConfidenceMedium},
		{59.999, ConfidenceLow},
		{40, ConfidenceLow},
		{39.999, ConfidenceVeryLow},
		{0, ConfidenceVeryLow},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ConfidenceBands.Classify(tc.score), "score %v", tc.score)
	}
}

func TestComplianceStatusBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "fully_compliant"},
		{94.9, "mostly_compliant"},
		{80, "mostly_compliant"},
		{60, "partially_compliant"},
		{40, "non_compliant"},
		{39.9, "severely_non_compliant"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ComplianceStatusBands.Classify(tc.score), "score %v", tc.score)
	}
}

func TestRiskAndGradeBands(t *testing.T) {
	assert.Equal(t, "CRITICAL", RiskLevelBands.Classify(75))
	assert.Equal(t, "HIGH", RiskLevelBands.Classify(50))
	assert.Equal(t, "MEDIUM", RiskLevelBands.Classify(35))
	assert.Equal(t, "LOW", RiskLevelBands.Classify(24.9))

	assert.Equal(t, "A", GradeBands.Classify(90))
	assert.Equal(t, "B+", GradeBands.Classify(80.5))
	assert.Equal(t, "B", GradeBands.Classify(79.9))
	assert.Equal(t, "D", GradeBands.Classify(0))
}

// Every score in [0,100] must map to exactly one label: classification is
// total and adjacent bands share a boundary with no gap.
func TestClassificationIsTotal(t *testing.T) {
	tables := map[string]BandTable{
		"confidence": ConfidenceBands,
		"compliance": ComplianceStatusBands,
		"risk":       RiskLevelBands,
		"grade":      GradeBands,
	}
	for name, table := range tables {
		for s := 0.0; s <= 100.0; s += 0.25 {
			label := table.Classify(s)
			require.NotEmpty(t, label, "%s table left %v unclassified", name, s)
		}
	}
}

func TestNewBandTableValidation(t *testing.T) {
	_, err := NewBandTable(Band{Lower: 50, Label: "HIGH"}, Band{Lower: 60, Label: "LOW"})
	require.Error(t, err)

	_, err = NewBandTable(Band{Lower: 50, Label: "HIGH"}, Band{Lower: 10, Label: "LOW"})
	require.Error(t, err, "final band must start at 0")

	table, err := NewBandTable(Band{Lower: 50, Label: "HIGH"}, Band{Lower: 0, Label: "LOW"})
	require.NoError(t, err)
	assert.Equal(t, "LOW", table.Classify(49.99))
}

func TestDegrade(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ConfidenceBands.Degrade(ConfidenceVeryHigh))
	assert.Equal(t, ConfidenceVeryLow, ConfidenceBands.Degrade(ConfidenceLow))
	assert.Equal(t, ConfidenceVeryLow, ConfidenceBands.Degrade(ConfidenceVeryLow))
	assert.Equal(t, ConfidenceVeryLow, ConfidenceBands.Degrade("bogus"))
}
