package contract

import (
	"context"
	"errors"
	"testing"

	"contract-risk-eval/backend/internal/ai"
	"contract-risk-eval/backend/internal/extract"
	"contract-risk-eval/backend/internal/pipeline"
)

const riskyContract = `
Vendor shall have unlimited liability for all claims. Customer may
terminate this agreement at any time at its sole discretion without cause.
This agreement is governed by the laws of New York. The parties shall keep
Confidential Information secret. Either party may terminate for material
breach with a 30 days written notice cure period.
`

func newReviewer(t *testing.T, analyzer ai.Analyzer) *Reviewer {
	t.Helper()
	extractor, err := extract.NewExtractor("")
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return NewReviewer(extractor, analyzer, nil)
}

func TestReviewEmptyTextRejected(t *testing.T) {
	r := newReviewer(t, nil)
	if _, err := r.Review(context.Background(), "doc", "   "); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestReviewScoresRiskyContract(t *testing.T) {
	r := newReviewer(t, nil)
	report, err := r.Review(context.Background(), "msa.txt", riskyContract)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if report.RiskScore <= 0 || report.RiskScore > 100 {
		t.Fatalf("risk score = %v", report.RiskScore)
	}
	if report.RiskLevel == "" {
		t.Fatal("risk level missing")
	}
	if len(report.Risks) == 0 {
		t.Fatal("expected risk findings")
	}
	if len(report.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
	if len(report.Recommendations) > pipeline.MaxRecommendations {
		t.Fatalf("recommendations over cap: %d", len(report.Recommendations))
	}
	// indemnification and limitation of liability clauses are absent
	if len(report.MissingClauses) == 0 {
		t.Fatal("expected missing clauses")
	}
}

func TestReviewCleanTextScoresZeroRisk(t *testing.T) {
	r := newReviewer(t, nil)
	clean := `Each party shall indemnify the other. Liability is limited to fees
paid. Either party may terminate for breach after a cure period.
Confidentiality obligations survive termination. Governed by the laws of
Delaware.`
	report, err := r.Review(context.Background(), "clean.txt", clean)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if report.RiskScore != 0 {
		t.Fatalf("clean contract risk score = %v, want 0", report.RiskScore)
	}
	if report.RiskLevel != "LOW" {
		t.Fatalf("risk level = %s, want LOW", report.RiskLevel)
	}
}

type failingAnalyzer struct{}

func (failingAnalyzer) Enabled() bool { return true }
func (failingAnalyzer) Analyze(context.Context, string, ai.Task) (ai.Result, error) {
	return ai.Result{}, errors.New("model unavailable")
}

func TestReviewAnalyzerFailureDegradesConfidence(t *testing.T) {
	withAnalyzer, err := newReviewer(t, failingAnalyzer{}).Review(context.Background(), "doc", riskyContract)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	without, err := newReviewer(t, nil).Review(context.Background(), "doc", riskyContract)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !withAnalyzer.Degraded {
		t.Fatal("analyzer failure must mark report degraded")
	}
	if withAnalyzer.Confidence == without.Confidence {
		t.Fatalf("degraded confidence %s should differ from %s", withAnalyzer.Confidence, without.Confidence)
	}
}

type stubAnalyzer struct{ result ai.Result }

func (s stubAnalyzer) Enabled() bool { return true }
func (s stubAnalyzer) Analyze(context.Context, string, ai.Task) (ai.Result, error) {
	return s.result, nil
}

func TestReviewMergesAnalyzerFindings(t *testing.T) {
	analyzer := stubAnalyzer{result: ai.Result{
		Narrative: "one-sided agreement",
		Findings: []pipeline.Finding{
			{Category: pipeline.CategoryFinancial, Severity: pipeline.SeverityCritical, Confidence: 0.9, Description: "uncapped price escalation"},
		},
	}}
	report, err := newReviewer(t, analyzer).Review(context.Background(), "doc", riskyContract)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if report.Narrative != "one-sided agreement" {
		t.Fatalf("narrative = %q", report.Narrative)
	}
	found := false
	for _, f := range report.Risks {
		if f.Description == "uncapped price escalation" {
			found = true
		}
	}
	if !found {
		t.Fatal("analyzer finding not merged into risks")
	}
}
