// Package contract runs the multi-stage contract review: extraction,
// scoring, aggregation, classification, and recommendation derivation.
package contract

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"contract-risk-eval/backend/internal/ai"
	"contract-risk-eval/backend/internal/extract"
	"contract-risk-eval/backend/internal/pipeline"
	"contract-risk-eval/backend/internal/util"
)

// ErrEmptyDocument rejects review requests without contract text.
var ErrEmptyDocument = errors.New("contract text is empty")

// Report is the complete output of one contract review.
type Report struct {
	DocumentName     string                    `json:"document_name"`
	RiskScore        float64                   `json:"risk_score"`
	RiskLevel        string                    `json:"risk_level"`
	Confidence       string                    `json:"confidence"`
	Clauses          []pipeline.Finding        `json:"clauses"`
	Risks            []pipeline.Finding        `json:"risks"`
	Protections      []pipeline.Finding        `json:"protections"`
	MissingClauses   []string                  `json:"missing_clauses"`
	Recommendations  []pipeline.Recommendation `json:"recommendations"`
	Narrative        string                    `json:"narrative,omitempty"`
	Degraded         bool                      `json:"degraded"`
	ProcessingTimeMs int64                     `json:"processing_time_ms"`
}

// Reviewer wires the extractor and the optional analyzer into the scoring
// pipeline.
type Reviewer struct {
	extractor *extract.Extractor
	analyzer  ai.Analyzer
	weights   pipeline.WeightTable
}

// NewReviewer constructs a reviewer. The analyzer may be nil; review then
// runs on pattern extraction alone.
func NewReviewer(extractor *extract.Extractor, analyzer ai.Analyzer, weights pipeline.WeightTable) *Reviewer {
	if weights == nil {
		weights = pipeline.DefaultWeights()
	}
	return &Reviewer{extractor: extractor, analyzer: analyzer, weights: weights}
}

// Review analyzes one contract document. The three pattern extractors run
// concurrently and join before scoring; they share no mutable state. An
// analyzer failure degrades the reported confidence instead of failing the
// review.
func (r *Reviewer) Review(ctx context.Context, name, text string) (Report, error) {
	timer := util.StartTimer()
	if strings.TrimSpace(text) == "" {
		return Report{}, ErrEmptyDocument
	}

	var (
		clauses     []pipeline.Finding
		risks       []pipeline.Finding
		protections []pipeline.Finding
		missing     []string
		wg          sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		clauses = r.extractor.Clauses(text)
	}()
	go func() {
		defer wg.Done()
		risks = r.extractor.Risks(text)
	}()
	go func() {
		defer wg.Done()
		protections = r.extractor.Protections(text)
		missing = r.extractor.MissingClauses(text)
	}()
	wg.Wait()

	report := Report{
		DocumentName:   name,
		MissingClauses: missing,
	}

	if r.analyzer != nil && r.analyzer.Enabled() {
		result, err := r.analyzer.Analyze(ctx, text, ai.TaskContractRisk)
		switch {
		case err == nil:
			report.Narrative = result.Narrative
			report.Degraded = result.Degraded
			risks = append(risks, result.Findings...)
		case errors.Is(err, context.Canceled):
			return Report{}, err
		default:
			logrus.WithError(err).WithField("document", name).Warn("contract analyzer failed")
			report.Degraded = true
		}
	}

	report.Risks = pipeline.TopFindings(risks, pipeline.MaxIssues)
	report.Clauses = pipeline.TopFindings(clauses, pipeline.MaxClauses)
	report.Protections = protections

	report.RiskScore = pipeline.RiskPoints(len(risks), len(protections), len(missing))
	report.RiskLevel = pipeline.RiskLevelBands.Classify(report.RiskScore)

	all := make([]pipeline.Finding, 0, len(clauses)+len(risks)+len(protections))
	all = append(all, clauses...)
	all = append(all, risks...)
	all = append(all, protections...)
	confidence := pipeline.ConfidenceBands.Classify(pipeline.EvidenceConfidence(all))
	if report.Degraded {
		confidence = pipeline.ConfidenceBands.Degrade(confidence)
	}
	report.Confidence = confidence

	recInput := append(append([]pipeline.Finding{}, risks...), r.extractor.MissingClauseFindings(text)...)
	report.Recommendations = pipeline.Derive(recInput, pipeline.MaxRecommendations)

	report.ProcessingTimeMs = timer.ElapsedMs()
	return report, nil
}
