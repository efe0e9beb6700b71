package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-risk-eval/backend/internal/ai"
	"contract-risk-eval/backend/internal/pipeline"
)

const compliantGDPRText = `The parties shall execute a Data Processing Agreement per Article 28.
Processing rests on a lawful basis of consent of the data subject.
Supplier shall provide breach notification within 72 hours of discovery.
International transfers rely on Standard Contractual Clauses.
Data retention is limited to the term of this agreement.`

const partialGDPRText = `Vendor processes customer data under a lawful basis of legitimate interest.
Customer data retention shall not exceed five years.`

func TestCheckFullyCompliant(t *testing.T) {
	checker := NewChecker(nil, nil)
	report, err := checker.Check(context.Background(), "msa.txt", compliantGDPRText, []string{"GDPR"})
	require.NoError(t, err)

	assert.Equal(t, 100.0, report.ComplianceScore)
	assert.Equal(t, "fully_compliant", report.Status)
	assert.Empty(t, report.Issues)
	assert.Empty(t, report.Recommendations)
	assert.Len(t, report.Checks, 5)
	for _, ck := range report.Checks {
		assert.True(t, ck.Passed, ck.ID)
	}
}

func TestCheckPartialCompliance(t *testing.T) {
	checker := NewChecker(nil, nil)
	report, err := checker.Check(context.Background(), "dpa.txt", partialGDPRText, []string{"gdpr"})
	require.NoError(t, err)

	// passes lawful-basis (weight 3.0) and deletion (1.2) out of 12.1 total
	assert.InDelta(t, 100.0*4.2/12.1, report.ComplianceScore, 0.001)
	assert.Equal(t, "severely_non_compliant", report.Status)
	assert.Len(t, report.Issues, 3)
	assert.NotEmpty(t, report.Recommendations)

	// failed checks sort ahead of passed ones, worst severity first
	require.NotEmpty(t, report.Checks)
	first := report.Checks[0]
	assert.Equal(t, "gdpr-dpa", first.ID)
	assert.False(t, first.Passed)
}

func TestCheckUnknownRegulation(t *testing.T) {
	checker := NewChecker(nil, nil)
	_, err := checker.Check(context.Background(), "x", compliantGDPRText, []string{"ITAR"})
	assert.ErrorIs(t, err, ErrUnknownRegulation)
}

func TestCheckEmptyDocument(t *testing.T) {
	checker := NewChecker(nil, nil)
	_, err := checker.Check(context.Background(), "x", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestCheckDefaultsToAllRegulations(t *testing.T) {
	checker := NewChecker(nil, nil)
	report, err := checker.Check(context.Background(), "x", compliantGDPRText, nil)
	require.NoError(t, err)
	assert.Equal(t, SupportedRegulations, report.Regulations)
}

type failingAnalyzer struct{}

func (failingAnalyzer) Enabled() bool { return true }

func (failingAnalyzer) Analyze(context.Context, string, ai.Task) (ai.Result, error) {
	return ai.Result{}, errors.New("upstream unavailable")
}

func TestCheckAnalyzerFailureDegradesConfidence(t *testing.T) {
	plain, err := NewChecker(nil, nil).Check(context.Background(), "x", compliantGDPRText, []string{"GDPR"})
	require.NoError(t, err)

	degraded, err := NewChecker(failingAnalyzer{}, nil).Check(context.Background(), "x", compliantGDPRText, []string{"GDPR"})
	require.NoError(t, err)

	assert.True(t, degraded.Degraded)
	assert.Equal(t, pipeline.ConfidenceBands.Degrade(plain.Confidence), degraded.Confidence)
}

type stubAnalyzer struct {
	result ai.Result
}

func (stubAnalyzer) Enabled() bool { return true }

func (s stubAnalyzer) Analyze(context.Context, string, ai.Task) (ai.Result, error) {
	return s.result, nil
}

func TestCheckAnalyzerFindingsMerged(t *testing.T) {
	analyzer := stubAnalyzer{result: ai.Result{
		Narrative: "Retention language is vague.",
		Findings: []pipeline.Finding{{
			Category:    pipeline.CategoryCompliance,
			Severity:    pipeline.SeverityMedium,
			Confidence:  0.8,
			Description: "Retention period is not quantified",
		}},
	}}
	report, err := NewChecker(analyzer, nil).Check(context.Background(), "x", compliantGDPRText, []string{"GDPR"})
	require.NoError(t, err)

	assert.Equal(t, "Retention language is vague.", report.Narrative)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "Retention period is not quantified", report.Issues[0].Description)
}
